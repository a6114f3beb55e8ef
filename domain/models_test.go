package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogPageURL(t *testing.T) {
	c := Catalog{BaseURL: "https://www.homegate.ch/rent/real-estate/country-switzerland/matching-list?ep=1&be=50000", PageParam: "ep"}
	assert.Equal(t, "https://www.homegate.ch/rent/real-estate/country-switzerland/matching-list?be=50000&ep=7", c.PageURL(7))

	c = Catalog{BaseURL: "https://example.com/list", PageParam: "pn"}
	assert.Equal(t, "https://example.com/list?pn=2", c.PageURL(2))
}

func TestCatalogResolveKind(t *testing.T) {
	assert.Equal(t, KindRent, Catalog{BaseURL: "https://x.ch/en/real-estate/rent/all"}.ResolveKind())
	assert.Equal(t, KindBuy, Catalog{BaseURL: "https://x.ch/en/real-estate/buy/all"}.ResolveKind())
	assert.Equal(t, "Parking", Catalog{Kind: "Parking", BaseURL: "https://x.ch/rent/"}.ResolveKind())
}

func TestListingIDFromURL(t *testing.T) {
	assert.Equal(t, "4001234567", ListingIDFromURL("https://www.homegate.ch/rent/4001234567"))
	assert.Equal(t, "4001234567", ListingIDFromURL("https://www.homegate.ch/rent/4001234567/"))
	assert.Equal(t, "abc", ListingIDFromURL("https://x.ch/buy/abc?utm=1"))
	assert.Equal(t, "abc", ListingIDFromURL("/buy/abc"))
}

func TestRecordField(t *testing.T) {
	r := Record{Fields: map[string]string{"Title": "Flat", "Rooms": ""}}
	assert.Equal(t, "Flat", r.Field("Title"))
	assert.Equal(t, NotFound, r.Field("Rooms"))
	assert.Equal(t, NotFound, r.Field("Phone"))
}

func TestHTTPStatusErrorIsTransient(t *testing.T) {
	err := &HTTPStatusError{URL: "http://img", StatusCode: 503}
	assert.ErrorIs(t, err, ErrTransientFetch)
	assert.Equal(t, "http_status_503 for http://img", err.Error())
}
