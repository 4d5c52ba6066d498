package poller

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/models"
)

func newTestPoller() *Poller {
	cfg := common.FeedsConfig{
		PreferredHoursPeriod: 24,
		MaxEntriesPerFeed:    10,
		FeedTimeoutSec:       5,
		PlaceholderLink:      "about:blank",
		PlaceholderTitle:     "(untitled)",
	}
	return New(nil, nil, cfg, common.NewSilentLogger())
}

func TestNormalize_EmptyLinkAndTitleFallBackToPlaceholder(t *testing.T) {
	p := newTestPoller()
	published := time.Now().UTC()
	item := &gofeed.Item{PublishedParsed: &published}

	entry, ok := p.normalize(item, &models.Channel{Title: "Example"}, time.Now().UTC().Add(-48*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, "about:blank", entry.Link)
	assert.Equal(t, "(untitled)", entry.Title)
}

func TestNormalize_SkipsEntryOlderThanCutoff(t *testing.T) {
	p := newTestPoller()
	old := time.Now().UTC().Add(-72 * time.Hour)
	item := &gofeed.Item{Link: "https://example.com/a", Title: "old", PublishedParsed: &old}

	_, ok := p.normalize(item, &models.Channel{Title: "Example"}, time.Now().UTC().Add(-24*time.Hour))
	assert.False(t, ok)
}

func TestNormalize_SkipsEntryWithNoParseableDate(t *testing.T) {
	p := newTestPoller()
	item := &gofeed.Item{Link: "https://example.com/a", Title: "no date"}

	_, ok := p.normalize(item, &models.Channel{Title: "Example"}, time.Now().UTC().Add(-24*time.Hour))
	assert.False(t, ok)
}

func TestNormalize_StripsHTMLFromSummary(t *testing.T) {
	p := newTestPoller()
	published := time.Now().UTC()
	item := &gofeed.Item{
		Link:            "https://example.com/a",
		Title:           "hello",
		Description:     "<p>hello <b>world</b></p>",
		PublishedParsed: &published,
	}

	entry, ok := p.normalize(item, &models.Channel{Title: "Example"}, time.Now().UTC().Add(-24*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, "hello world", entry.Summary)
}

func TestNormalize_PicksFirstImageEnclosure(t *testing.T) {
	p := newTestPoller()
	published := time.Now().UTC()
	item := &gofeed.Item{
		Link:            "https://example.com/a",
		Title:           "hello",
		PublishedParsed: &published,
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://example.com/audio.mp3", Type: "audio/mpeg"},
			{URL: "https://example.com/cover.jpg", Type: "image/jpeg"},
		},
	}

	entry, ok := p.normalize(item, &models.Channel{Title: "Example"}, time.Now().UTC().Add(-24*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/cover.jpg", entry.Image)
}

func TestContentHash_IsDeterministicOverLink(t *testing.T) {
	a := NormalizedEntry{Link: "https://example.com/a"}
	b := NormalizedEntry{Link: "https://example.com/a"}
	c := NormalizedEntry{Link: "https://example.com/b"}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
	assert.Len(t, a.ContentHash(), 64)
}
