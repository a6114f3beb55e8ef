package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-worker/domain"
)

const detailPage = `<html>
<head>
  <title>Ignored title</title>
  <meta name="description" content="Bright flat near the lake">
</head>
<body>
  <h1>3.5 room flat in Zurich</h1>
  <address>Seestrasse 1, 8002 Zurich</address>
  <a href="tel:+41441234567">Call</a>
  <dl>
    <dt>Availability:</dt><dd>Immediately</dd>
    <dt>No. of rooms:</dt><dd>3.5</dd>
    <dt>Rent:</dt><dd>CHF 2,950.–</dd>
    <dt>Parking:</dt><dd>Garage</dd>
  </dl>
  <ul class="FeaturesFurnishings_list">
    <li>Balcony</li>
    <li>Lift</li>
  </ul>
  <iframe src="https://www.google.com/maps/embed/v1/place?q=47.3622,8.5335"></iframe>
  <img src="/media/a.jpg">
  <img data-src="https://cdn.example.com/b.png">
  <img src="data:image/gif;base64,R0lGOD">
  <img src="/media/a.jpg">
  <img data-lazy-src="/media/c.webp">
  <img>
</body>
</html>`

const recordURL = "https://www.homegate.ch/rent/3001"

func TestHTMLRecordExtractor_Extract(t *testing.T) {
	fetcher := new(MockDocumentFetcher)
	extractor := NewHTMLRecordExtractor(fetcher)
	fetcher.On("FetchDocument", mock.Anything, recordURL).Return(detailPage, nil).Once()

	rec, err := extractor.Extract(context.TODO(), recordURL)
	require.NoError(t, err)

	assert.Equal(t, "3001", rec.ListingID)
	assert.Equal(t, recordURL, rec.SourceURL)
	assert.Equal(t, "3.5 room flat in Zurich", rec.Fields["Title"])
	assert.Equal(t, "Bright flat near the lake", rec.Fields["Description"])
	assert.Equal(t, "+41441234567", rec.Fields["Phone"])
	assert.Equal(t, "Seestrasse 1, 8002 Zurich", rec.Fields["Full address"])
	assert.Equal(t, "Immediately", rec.Fields["Available From"])
	assert.Equal(t, "3.5", rec.Fields["No_of_rooms"])
	assert.Equal(t, "CHF 2,950.–", rec.Fields["Price"])
	assert.Equal(t, "Garage", rec.Fields["Parking"])
	assert.Equal(t, "Balcony, Lift", rec.Fields["Features"])
	assert.Equal(t, domain.NotFound, rec.Fields["Year Built"])

	require.NotNil(t, rec.Latitude)
	require.NotNil(t, rec.Longitude)
	assert.InDelta(t, 47.3622, *rec.Latitude, 1e-9)
	assert.InDelta(t, 8.5335, *rec.Longitude, 1e-9)

	// Same record reuses the cached document
	refs, err := extractor.ExtractAssetRefs(context.TODO(), recordURL)
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetRef{
		{URL: "https://www.homegate.ch/media/a.jpg", Ordinal: 1},
		{URL: "https://cdn.example.com/b.png", Ordinal: 2},
		{URL: "https://www.homegate.ch/media/c.webp", Ordinal: 3},
	}, refs)
	fetcher.AssertExpectations(t)
}

func TestHTMLRecordExtractor_Extract_Sparse(t *testing.T) {
	fetcher := new(MockDocumentFetcher)
	extractor := NewHTMLRecordExtractor(fetcher)
	fetcher.On("FetchDocument", mock.Anything, mock.Anything).
		Return(`<html><head><title>Fallback</title></head><body></body></html>`, nil)

	rec, err := extractor.Extract(context.TODO(), "https://www.homegate.ch/buy/4001/")
	require.NoError(t, err)

	assert.Equal(t, "4001", rec.ListingID)
	assert.Equal(t, "Fallback", rec.Fields["Title"])
	for _, f := range RecordFields {
		if f != "Title" {
			assert.Equal(t, domain.NotFound, rec.Fields[f], f)
		}
	}
	assert.Nil(t, rec.Latitude)
	assert.Nil(t, rec.Longitude)
}

func TestHTMLRecordExtractor_FetchError(t *testing.T) {
	fetcher := new(MockDocumentFetcher)
	extractor := NewHTMLRecordExtractor(fetcher)
	fetcher.On("FetchDocument", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := extractor.Extract(context.TODO(), recordURL)
	assert.Error(t, err)

	refs, err := extractor.ExtractAssetRefs(context.TODO(), recordURL)
	assert.Error(t, err)
	assert.Nil(t, refs)
}
