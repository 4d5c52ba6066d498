// Package ingest implements the ingest writer: it consumes
// process_news batches, filters out entries whose content hash already
// exists, bulk-upserts the rest with conflict-ignore semantics, and
// optionally hands the inserted rows to a search index.
//
// Grounded on the repository-per-entity / unit-of-work pattern. Retry
// with backoff is implemented here (see HandleProcessNews), not left to
// the Work Broker's nack-and-redeliver path.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
	"github.com/vavlxxx/feedfusion/internal/services/poller"
)

// maxIngestRetries bounds the backoff retry loop (
// "up to the broker's retry budget").
const maxIngestRetries = 5

// ingestTask wraps a process_news batch with the retry counter the
// Ingest Writer threads through its own self re-enqueue, since AMQP
// headers aren't visible to Work Broker task handlers.
type ingestTask struct {
	poller.ProcessNewsTask
	Attempt int `json:"attempt"`
}

// Writer consumes process_news tasks.
type Writer struct {
	store  interfaces.Store
	broker interfaces.Broker
	index  interfaces.SearchIndex // nil when search indexing is disabled
	logger *common.Logger
}

// New builds a Writer. index may be nil (search indexing disabled or
// unavailable); indexing is then skipped entirely.
func New(store interfaces.Store, broker interfaces.Broker, index interfaces.SearchIndex, logger *common.Logger) *Writer {
	return &Writer{store: store, broker: broker, index: index, logger: logger}
}

// HandleProcessNews is the process_news task handler registered with the
// Work Broker. On a database error it retries with exponential backoff
// (60 * 2^attempt seconds) by sleeping and
// re-enqueueing itself up to maxIngestRetries, rather than relying on
// AMQP's native nack-requeue (which carries no backoff and no counter).
func (w *Writer) HandleProcessNews(ctx context.Context, payload []byte) error {
	var task ingestTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode process_news payload: %w", err)
	}
	if len(task.Entries) == 0 {
		return nil
	}

	inserted, writeErr := w.tryWrite(ctx, task.ProcessNewsTask)
	if writeErr == nil {
		if w.index != nil && len(inserted) > 0 {
			w.indexBestEffort(ctx, inserted)
		}
		return nil
	}

	if task.Attempt >= maxIngestRetries {
		w.logger.Error().Err(writeErr).Int("attempt", task.Attempt).Msg("process_news exhausted retries, dropping batch")
		return nil
	}

	backoff := time.Duration(60) * time.Second * time.Duration(1<<uint(task.Attempt))
	w.logger.Error().Err(writeErr).Int("attempt", task.Attempt).Str("backoff", backoff.String()).Msg("process_news write failed, retrying")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
	}

	task.Attempt++
	return w.broker.Enqueue(ctx, "process_news", task)
}

func (w *Writer) tryWrite(ctx context.Context, task poller.ProcessNewsTask) ([]*models.News, error) {
	uow, err := w.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	inserted, err := w.writeBatch(ctx, uow, task)
	if err != nil {
		_ = uow.Rollback(ctx)
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (w *Writer) writeBatch(ctx context.Context, uow interfaces.UnitOfWork, task poller.ProcessNewsTask) ([]*models.News, error) {
	hashes := make([]string, len(task.Entries))
	for i, e := range task.Entries {
		hashes[i] = e.ContentHash()
	}

	existing, err := uow.News().GetHashesByHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.News, 0, len(task.Entries))
	for _, e := range task.Entries {
		hash := e.ContentHash()
		if existing[hash] {
			continue
		}
		candidates = append(candidates, &models.News{
			ChannelID:   task.ChannelID,
			Link:        e.Link,
			Title:       e.Title,
			Summary:     e.Summary,
			Source:      e.Source,
			Image:       e.Image,
			Published:   e.Published,
			ContentHash: hash,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return uow.News().AddBulkUpsert(ctx, candidates)
}

// indexBestEffort hands inserted rows to the search index one item at a
// time so a single bad document never fails the rest; errors are logged,
// never returned.
func (w *Writer) indexBestEffort(ctx context.Context, rows []*models.News) {
	if err := w.index.BulkAdd(ctx, rows); err != nil {
		w.logger.Error().Err(err).Int("count", len(rows)).Msg("search index bulk add failed")
	}
}
