package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"catalog-sync-worker/domain"
)

var baseNoResultsPhrases = []string{
	"requested page cannot be displayed",
	"page cannot be displayed",
	"no properties found",
	"keine objekte gefunden",
}

var immoscoutErrorPhrases = []string{
	"Oh no, something went wrong!",
	"Oups, il y a eu une erreur!",
	"Oh nein, da ist etwas schiefgelaufen!",
	"Ops, c'è stato un errore!",
}

const resultContainer = "data-test=result-list-container"

// DefaultCatalogs are synced when no catalogs file is configured.
func DefaultCatalogs() []domain.Catalog {
	immoscoutPhrases := append(append([]string{}, baseNoResultsPhrases...), immoscoutErrorPhrases...)
	links := []string{"/rent/", "/buy/"}
	return []domain.Catalog{
		{
			Name:             "homegate-buy",
			Source:           "homegate",
			Kind:             domain.KindBuy,
			BaseURL:          "https://www.homegate.ch/buy/real-estate/country-switzerland/matching-list?ep=1&be=50000",
			PageParam:        "ep",
			LinkPatterns:     links,
			ResultContainer:  resultContainer,
			NoResultsPhrases: baseNoResultsPhrases,
		},
		{
			Name:             "homegate-rent",
			Source:           "homegate",
			Kind:             domain.KindRent,
			BaseURL:          "https://www.homegate.ch/rent/real-estate/country-switzerland/matching-list?ep=1&be=50000",
			PageParam:        "ep",
			LinkPatterns:     links,
			ResultContainer:  resultContainer,
			NoResultsPhrases: baseNoResultsPhrases,
		},
		{
			Name:             "immoscout24-rent",
			Source:           "immoscout24",
			Kind:             domain.KindRent,
			BaseURL:          "https://www.immoscout24.ch/en/real-estate/rent/country-switzerland-fl?pn=1&r=50000",
			PageParam:        "pn",
			LinkPatterns:     links,
			ResultContainer:  resultContainer,
			NoResultsPhrases: immoscoutPhrases,
		},
		{
			Name:             "immoscout24-buy",
			Source:           "immoscout24",
			Kind:             domain.KindBuy,
			BaseURL:          "https://www.immoscout24.ch/en/real-estate/buy/country-switzerland-fl?pn=1&r=50000",
			PageParam:        "pn",
			LinkPatterns:     links,
			ResultContainer:  resultContainer,
			NoResultsPhrases: immoscoutPhrases,
		},
	}
}

type catalogsFile struct {
	Catalogs []domain.Catalog `yaml:"catalogs"`
}

// LoadCatalogs reads the catalogs file at path, or returns the defaults
// when path is empty.
func LoadCatalogs(path string) ([]domain.Catalog, error) {
	if path == "" {
		return DefaultCatalogs(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogs file %s: %w", path, err)
	}
	var file catalogsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalogs file %s: %w", path, err)
	}
	if len(file.Catalogs) == 0 {
		return nil, fmt.Errorf("catalogs file %s lists no catalogs", path)
	}

	names := make(map[string]bool, len(file.Catalogs))
	for i, c := range file.Catalogs {
		if c.Name == "" {
			return nil, fmt.Errorf("catalog #%d in %s has no name", i+1, path)
		}
		if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
			return nil, fmt.Errorf("catalog name %q cannot be used as a file name", c.Name)
		}
		if c.BaseURL == "" {
			return nil, fmt.Errorf("catalog %s has no base_url", c.Name)
		}
		if names[c.Name] {
			return nil, fmt.Errorf("catalog %s is listed twice", c.Name)
		}
		names[c.Name] = true
	}
	return file.Catalogs, nil
}
