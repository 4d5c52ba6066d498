// Package interfaces defines the service contracts the core depends on —
// the Durable Store's repositories, the Work Broker, the Delivery Queue,
// the chat transport, the search index, and the classifier. Concrete
// implementations live under internal/storage/postgres, internal/broker,
// internal/queue, internal/telegram and internal/searchindex; the
// Classifier implementation is supplied by the caller (App.WithClassifier).
// Services depend only on these interfaces so tests can inject fakes.
package interfaces

import (
	"context"

	"github.com/vavlxxx/feedfusion/internal/models"
)

// Filter is an equality-filter map used by GetAllFiltered across repositories.
type Filter map[string]any

// UnitOfWork scopes a transaction across one or more repository calls.
// Writes are never auto-committed — callers must Commit explicitly, and
// the unit-of-work guarantees the underlying connection/transaction is
// released on every exit path (Commit, Rollback, or context cancellation).
type UnitOfWork interface {
	Channels() ChannelRepo
	News() NewsRepo
	Samples() SampleRepo
	Subscriptions() SubscriptionRepo
	Uploads() UploadRepo
	Trainings() TrainingRepo

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens scoped units-of-work against the Durable Store.
type Store interface {
	// Begin opens a new transactional unit-of-work. The caller must call
	// Commit or Rollback; Close releases the pool, not an individual tx.
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// ChannelRepo is the uniform repository contract for Channel rows.
type ChannelRepo interface {
	Add(ctx context.Context, c *models.Channel) error
	GetOne(ctx context.Context, id int64) (*models.Channel, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.Channel, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.Channel, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)
}

// NewsRepo is the Durable Store's News repository, including the
// specialized dedup/search operations.
type NewsRepo interface {
	Add(ctx context.Context, n *models.News) error
	AddBulk(ctx context.Context, rows []*models.News) error
	GetOne(ctx context.Context, id int64) (*models.News, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.News, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.News, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)

	// GetRecent returns News for channelID with id > gt, ordered ascending
	// by id (fan-out planner) when ascending is true, otherwise ordered by
	// published desc (read-path default).
	GetRecent(ctx context.Context, channelID int64, gt int64, limit, offset int, ascending bool) ([]*models.News, error)

	// GetHashesByHashes returns the subset of the given content hashes that
	// already exist in the store.
	GetHashesByHashes(ctx context.Context, hashes []string) (map[string]bool, error)

	// GetUncategorized returns every News row with category IS NULL, for
	// the classifier loop's check_for_uncategorized_news tick.
	GetUncategorized(ctx context.Context) ([]*models.News, error)

	// AddBulkUpsert inserts rows, ignoring conflicts on content_hash, and
	// returns the stored rows whose content_hash is in the batch; rows that
	// were already stored under one of those hashes are included.
	AddBulkUpsert(ctx context.Context, rows []*models.News) ([]*models.News, error)

	// SearchWithPagination implements the case-insensitive substring /
	// set-membership search.
	SearchWithPagination(ctx context.Context, limit, offset int, query string, categories []string, channelIDs []int64, recentFirst bool) (total int64, rows []*models.News, err error)
}

// SampleRepo is the Durable Store's DenormalizedSample repository.
type SampleRepo interface {
	Add(ctx context.Context, s *models.DenormalizedSample) error
	AddBulk(ctx context.Context, rows []*models.DenormalizedSample) error

	// AddBulkUpsert inserts rows, ignoring conflicts on the (title,
	// category) unique key, and returns the rows actually inserted.
	AddBulkUpsert(ctx context.Context, rows []*models.DenormalizedSample) ([]*models.DenormalizedSample, error)

	GetOne(ctx context.Context, id int64) (*models.DenormalizedSample, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.DenormalizedSample, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.DenormalizedSample, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)

	// UpsertFromCorrection implements the admin-correction path
	// keyed on (title, category).
	UpsertFromCorrection(ctx context.Context, title, summary, category string) error

	// MarkUsedInTraining flips used_in_training=true for the given ids,
	// atomically: either all flip or none do.
	MarkUsedInTraining(ctx context.Context, ids []int64) (int, error)

	// GetRandomUsedSamples returns up to n rows with used_in_training=true,
	// for incremental-training replay.
	GetRandomUsedSamples(ctx context.Context, n int) ([]*models.DenormalizedSample, error)
}

// SubscriptionRepo is the Durable Store's Subscription repository.
type SubscriptionRepo interface {
	Add(ctx context.Context, s *models.Subscription) error
	GetOne(ctx context.Context, id int64) (*models.Subscription, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.Subscription, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.Subscription, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)

	// GetAllWithUser joins every subscription with its user's telegram id,
	// for the fan-out planner's per-tick walk.
	GetAllWithUser(ctx context.Context) ([]*models.Subscription, map[int64]*models.TelegramUser, error)
}

// UploadRepo is the Durable Store's DatasetUpload repository.
type UploadRepo interface {
	Add(ctx context.Context, u *models.DatasetUpload) error
	GetOne(ctx context.Context, id int64) (*models.DatasetUpload, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.DatasetUpload, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.DatasetUpload, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)
}

// TrainingRepo is the Durable Store's TrainingJob repository.
type TrainingRepo interface {
	Add(ctx context.Context, t *models.TrainingJob) error
	GetOne(ctx context.Context, id int64) (*models.TrainingJob, error)
	GetOneOrNone(ctx context.Context, id int64) (*models.TrainingJob, error)
	GetAllFiltered(ctx context.Context, filter Filter) ([]*models.TrainingJob, error)
	Edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error
	Delete(ctx context.Context, id int64, ensureExistence bool) error
	Count(ctx context.Context, filter Filter) (int64, error)

	// GetInProgress is the uniqueness probe consulted before starting a job
	// used to enforce training exclusivity.
	GetInProgress(ctx context.Context, modelDir string) (*models.TrainingJob, error)
}
