package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Systems Hour</title>
  <item>
    <title>Ep 3: Consensus</title>
    <guid>ep-3</guid>
    <link>https://systemshour.example/ep3</link>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
    <enclosure url="https://cdn.example/ep3.mp3" type="audio/mpeg" length="1000"/>
  </item>
  <item>
    <title>Ep 2: Page only</title>
    <link>https://systemshour.example/ep2</link>
  </item>
  <item>
    <title>Announcement</title>
  </item>
  <item>
    <title>Ep 1: Pilot</title>
    <guid>ep-1</guid>
    <enclosure url="https://cdn.example/ep1.mp3" length="1000"/>
  </item>
</channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEpisodes(t *testing.T) {
	srv := feedServer(t)

	eps, err := NewReader(nil).Episodes(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	require.Len(t, eps, 3)

	assert.Equal(t, "ep-3", eps[0].GUID)
	assert.Equal(t, "Ep 3: Consensus", eps[0].Title)
	assert.Equal(t, "https://cdn.example/ep3.mp3", eps[0].AudioURL)
	assert.Equal(t, "https://cdn.example/ep3.mp3", eps[0].Source())
	require.NotNil(t, eps[0].PublishedAt)
	assert.Equal(t, 2025, eps[0].PublishedAt.Year())

	assert.Equal(t, "", eps[1].AudioURL)
	assert.Equal(t, "https://systemshour.example/ep2", eps[1].Source())
	assert.Equal(t, "https://systemshour.example/ep2", eps[1].GUID)

	assert.Equal(t, "https://cdn.example/ep1.mp3", eps[2].AudioURL)
}

func TestEpisodesMax(t *testing.T) {
	srv := feedServer(t)

	eps, err := NewReader(nil).Episodes(context.Background(), srv.URL, 2)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "Ep 2: Page only", eps[1].Title)
}

func TestEpisodesErrors(t *testing.T) {
	_, err := NewReader(nil).Episodes(context.Background(), " ", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	_, err = NewReader(nil).Episodes(context.Background(), srv.URL, 0)
	assert.Error(t, err)
}

func TestAudioEnclosure(t *testing.T) {
	item := &gofeed.Item{Enclosures: []*gofeed.Enclosure{
		{URL: "https://cdn.example/cover.jpg", Type: "image/jpeg"},
		{URL: "https://cdn.example/untyped.bin"},
		{URL: "https://cdn.example/ep.m4a", Type: "Audio/MP4"},
	}}
	assert.Equal(t, "https://cdn.example/ep.m4a", audioEnclosure(item))

	item.Enclosures = item.Enclosures[:2]
	assert.Equal(t, "https://cdn.example/untyped.bin", audioEnclosure(item))

	item.Enclosures = item.Enclosures[:1]
	assert.Equal(t, "", audioEnclosure(item))
}
