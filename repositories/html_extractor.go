package repositories

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"catalog-sync-worker/domain"
)

var coordinatesPattern = regexp.MustCompile(`q=(-?\d+\.?\d*),(-?\d+\.?\d*)`)

// attributeFields maps the labels of a listing's key/value table to the
// snapshot column they are stored under.
var attributeFields = map[string]string{
	"Availability":         "Available From",
	"Type":                 "Type",
	"No. of rooms":         "No_of_rooms",
	"Number of bathrooms":  "Number of bathrooms",
	"Living space":         "Surface Living",
	"Last refurbishment":   "Last Refurbishment",
	"Year of construction": "Year Built",
	"Object ref.":          "Object Reference",
	"Price":                "Price",
	"Rent":                 "Price",
	"Floor":                "Floor",
}

// RecordFields lists the columns every extracted record carries.
var RecordFields = []string{
	"Title", "Price", "Location", "Available From", "Type", "No_of_rooms",
	"Number of bathrooms", "Surface Living", "Last Refurbishment", "Year Built",
	"Features", "Description", "Full address", "Phone", "Object Reference",
}

// HTMLRecordExtractor reads listing fields and image references from a
// record's detail page. The last document is cached so extracting fields and
// asset refs of the same record loads the page once.
type HTMLRecordExtractor struct {
	fetcher DocumentFetcher

	mu       sync.Mutex
	lastURL  string
	lastRoot *html.Node
}

func NewHTMLRecordExtractor(fetcher DocumentFetcher) *HTMLRecordExtractor {
	return &HTMLRecordExtractor{fetcher: fetcher}
}

func (e *HTMLRecordExtractor) Extract(ctx context.Context, recordURL string) (domain.Record, error) {
	root, err := e.load(ctx, recordURL)
	if err != nil {
		return domain.Record{}, err
	}

	fields := make(map[string]string, len(RecordFields))
	for _, f := range RecordFields {
		fields[f] = domain.NotFound
	}

	if h1 := findFirst(root, element("h1")); h1 != nil {
		setField(fields, "Title", text(h1))
	} else if t := findFirst(root, element("title")); t != nil {
		setField(fields, "Title", text(t))
	}
	if meta := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == "description"
	}); meta != nil {
		setField(fields, "Description", attr(meta, "content"))
	}
	if tel := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && strings.HasPrefix(attr(n, "href"), "tel:")
	}); tel != nil {
		setField(fields, "Phone", strings.TrimPrefix(attr(tel, "href"), "tel:"))
	}
	if addr := findFirst(root, element("address")); addr != nil {
		setField(fields, "Full address", text(addr))
		setField(fields, "Location", text(addr))
	}
	for _, dl := range findAll(root, element("dl")) {
		extractDefinitionList(dl, fields)
	}
	if ul := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "ul" && strings.Contains(attr(n, "class"), "Features")
	}); ul != nil {
		var items []string
		for _, li := range findAll(ul, element("li")) {
			if t := text(li); t != "" {
				items = append(items, t)
			}
		}
		setField(fields, "Features", strings.Join(items, ", "))
	}

	rec := domain.Record{
		ListingID: domain.ListingIDFromURL(recordURL),
		SourceURL: recordURL,
		Fields:    fields,
	}
	rec.Latitude, rec.Longitude = mapCoordinates(root)
	return rec, nil
}

func (e *HTMLRecordExtractor) ExtractAssetRefs(ctx context.Context, recordURL string) ([]domain.AssetRef, error) {
	root, err := e.load(ctx, recordURL)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(recordURL)
	seen := make(map[string]bool)
	var refs []domain.AssetRef
	for _, img := range findAll(root, element("img")) {
		src := firstNonEmpty(attr(img, "src"), attr(img, "data-src"), attr(img, "data-lazy-src"))
		if src == "" || strings.HasPrefix(src, "data:") || seen[src] {
			continue
		}
		seen[src] = true
		refs = append(refs, domain.AssetRef{URL: resolve(base, src), Ordinal: len(refs) + 1})
	}
	return refs, nil
}

func (e *HTMLRecordExtractor) load(ctx context.Context, recordURL string) (*html.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastURL == recordURL && e.lastRoot != nil {
		return e.lastRoot, nil
	}
	doc, err := e.fetcher.FetchDocument(ctx, recordURL)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	e.lastURL, e.lastRoot = recordURL, root
	return root, nil
}

func extractDefinitionList(dl *html.Node, fields map[string]string) {
	var label string
	for c := dl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			label = strings.TrimSpace(strings.ReplaceAll(text(c), ":", ""))
		case "dd":
			if label == "" {
				continue
			}
			name, ok := attributeFields[label]
			if !ok {
				name = label
			}
			setField(fields, name, text(c))
			label = ""
		}
	}
}

func mapCoordinates(root *html.Node) (*float64, *float64) {
	iframe := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "iframe" && strings.Contains(attr(n, "src"), "google.com/maps")
	})
	if iframe == nil {
		return nil, nil
	}
	m := coordinatesPattern.FindStringSubmatch(attr(iframe, "src"))
	if m == nil {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}

func setField(fields map[string]string, name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fields[name] = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
