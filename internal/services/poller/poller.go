// Package poller implements the feed poller: on each
// parse_rss tick, fetch and normalize every active channel's feed and
// emit one process_news task per channel with a non-empty accepted batch.
//
// Grounded on the eodhd.Client functional-options shape
// (baseURL/timeout/logger options, a rate-limited *http.Client) and on
// mmcdole/gofeed + microcosm-cc/bluemonday from the wider retrieval pack.
package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// ProcessNewsTask is the process_news task payload — one entry batch for
// one channel.
type ProcessNewsTask struct {
	ChannelID int64          `json:"channel_id"`
	Entries   []NormalizedEntry `json:"entries"`
}

// NormalizedEntry is one feed entry after poller normalization.
type NormalizedEntry struct {
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	Image     string    `json:"image"`
	Published time.Time `json:"published"`
}

// ContentHash is the deduplication key the Ingest Writer looks up by.
func (e NormalizedEntry) ContentHash() string {
	sum := sha256.Sum256([]byte(e.Link))
	return hex.EncodeToString(sum[:])
}

// Option configures a Poller.
type Option func(*Poller)

// WithHTTPClient overrides the HTTP client gofeed fetches through.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Poller) { p.httpClient = client }
}

// Poller fetches and normalizes RSS/Atom feeds.
type Poller struct {
	store      interfaces.Store
	broker     interfaces.Broker
	cfg        common.FeedsConfig
	logger     *common.Logger
	httpClient *http.Client
	sanitizer  *bluemonday.Policy
}

// New builds a Poller. cfg bounds age, entry count and placeholder
// fallbacks.
func New(store interfaces.Store, broker interfaces.Broker, cfg common.FeedsConfig, logger *common.Logger, opts ...Option) *Poller {
	p := &Poller{
		store:      store,
		broker:     broker,
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.GetFeedTimeout()},
		sanitizer:  bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run handles one parse_rss tick: load every channel, fetch/normalize/
// emit independently per channel so one bad feed never blocks the rest.
func (p *Poller) Run(ctx context.Context, _ []byte) error {
	uow, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	channels, err := uow.Channels().GetAllFiltered(ctx, interfaces.Filter{})
	if err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	for _, ch := range channels {
		if err := p.pollChannel(ctx, ch); err != nil {
			p.logger.Error().Err(err).Int64("channel_id", ch.ID).Str("link", ch.Link).Msg("feed poll failed, skipping")
		}
	}
	return nil
}

func (p *Poller) pollChannel(ctx context.Context, ch *models.Channel) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.GetFeedTimeout())
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = p.httpClient

	feed, err := fp.ParseURLWithContext(ch.Link, fetchCtx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-p.cfg.GetPreferredHoursPeriod())
	maxEntries := p.cfg.MaxEntriesPerFeed
	if maxEntries <= 0 {
		maxEntries = len(feed.Items)
	}

	entries := make([]NormalizedEntry, 0, len(feed.Items))
	for i, item := range feed.Items {
		if i >= maxEntries {
			break
		}
		entry, ok := p.normalize(item, ch, cutoff)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil
	}

	return p.broker.Enqueue(ctx, "process_news", ProcessNewsTask{ChannelID: ch.ID, Entries: entries})
}

func (p *Poller) normalize(item *gofeed.Item, ch *models.Channel, cutoff time.Time) (NormalizedEntry, bool) {
	published, ok := resolvePublished(item)
	if !ok {
		return NormalizedEntry{}, false
	}
	if published.Before(cutoff) {
		return NormalizedEntry{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = p.cfg.PlaceholderLink
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = p.cfg.PlaceholderTitle
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	summary = strings.TrimSpace(p.sanitizer.Sanitize(summary))

	return NormalizedEntry{
		Link:      link,
		Title:     title,
		Summary:   summary,
		Source:    ch.Title,
		Image:     firstImageEnclosure(item),
		Published: published,
	}, true
}

// resolvePublished applies gofeed's already-tolerant multi-format date
// parsing, coercing to UTC-naive; an entry with no
// parseable date is skipped entirely.
func resolvePublished(item *gofeed.Item) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC(), true
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC(), true
	}
	return time.Time{}, false
}

// firstImageEnclosure returns the first enclosure whose type contains
// "image" (case-insensitive); without one it falls back to the item's own
// image URL, or "" when the item has none.
func firstImageEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if strings.Contains(strings.ToLower(enc.Type), "image") {
			return enc.URL
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}
