package interfaces

import (
	"context"
	"errors"
	"io/fs"

	"github.com/vavlxxx/feedfusion/internal/models"
)

// Broker is the durable task broker contract.
type Broker interface {
	// Enqueue submits a best-effort task. Returns apperrors.ErrBrokerUnavailable
	// (wrapped) when the broker is unreachable. The caller's own database
	// transaction must already be committed before calling Enqueue.
	Enqueue(ctx context.Context, taskName string, payload any) error

	// Schedule registers a cron-expression-triggered periodic dispatch of
	// taskName; handler runs with prefetch=1 and late-acknowledgement
	// semantics via Consume.
	Schedule(cronExpr, taskName string, payload func() any) error

	// Consume registers the handler invoked for taskName; consumption with
	// prefetch=1 begins when Run is called. Acknowledgement happens only
	// once handler returns nil; a non-nil return causes the broker to
	// redeliver.
	Consume(taskName string, handler func(ctx context.Context, payload []byte) error) error

	// Run starts dispatching scheduled tasks and consuming registered
	// queues until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}

// DeliveryQueue is the durable FIFO queue with header metadata.
type DeliveryQueue interface {
	// Publish sends msg with the given headers to the named queue.
	Publish(ctx context.Context, queue string, msg *models.DeliveryMessage, headers map[string]any) error

	// Consume runs a manual-ack handler for the named queue, prefetch 1,
	// blocking until ctx is cancelled or the delivery stream closes.
	// handler receives a Delivery exposing the raw body and headers and
	// settles it through Ack/Requeue/DeadLetter; a non-nil error return
	// makes Consume nack the message without requeue.
	Consume(ctx context.Context, queue string, handler DeliveryHandler) error

	Close() error
}

// DeliveryHandler processes one Delivery Queue message. Implementations
// must call exactly one of Ack/Requeue/DeadLetter before returning.
type DeliveryHandler func(ctx context.Context, d Delivery) error

// Delivery is a single in-flight Delivery Queue message.
type Delivery interface {
	Body() []byte
	Headers() map[string]any
	Ack() error
	// Requeue republishes the message (with newHeaders) to the same queue
	// and acks the original delivery. Retries are explicit re-publishes,
	// never broker-level nacks.
	Requeue(ctx context.Context, newHeaders map[string]any) error
	// DeadLetter publishes to the queue's .dead sibling with newHeaders and
	// acks the original.
	DeadLetter(ctx context.Context, newHeaders map[string]any) error
}

// ChatTransport is the outbound chat capability.
type ChatTransport interface {
	SendText(ctx context.Context, chatID, html string) error
	SendPhoto(ctx context.Context, chatID, imageURL, captionHTML string) error
}

// SearchIndex is the optional search index's ingest contract.
type SearchIndex interface {
	BulkAdd(ctx context.Context, docs []*models.News) error
	Search(ctx context.Context, query string, categories []string, channelIDs []int64, limit int, searchAfter string, recentFirst bool) (total int64, docs []*models.News, lastSortKey string, err error)
}

// PredictionInput is one classifier request row.
type PredictionInput struct {
	NewsID  int64  `json:"news_id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// PredictionResult is one classifier response row.
type PredictionResult struct {
	NewsID   int64  `json:"news_id"`
	Category string `json:"category,omitempty"` // empty when the model declines to label
}

// TrainConfig carries the classifier's training hyperparameters. The core
// treats it as opaque beyond persisting it on the TrainingJob row.
type TrainConfig map[string]any

// TrainSample is one (title, summary, category) row handed to training.
type TrainSample struct {
	Title    string
	Summary  string
	Category string
}

// Classifier is the narrow training/prediction boundary; the model
// implementation itself lives outside this module.
type Classifier interface {
	PredictMany(ctx context.Context, inputs []PredictionInput) ([]PredictionResult, error)
	Train(ctx context.Context, samples []TrainSample, cfg TrainConfig, resume bool) (metrics map[string]any, err error)
	// KnownLabels returns the category set the current model recognizes.
	KnownLabels(ctx context.Context) ([]string, error)
}

// ModelStore is a filesystem-like capability check: one abstraction over
// "are the model artifacts present",
// injectable in tests via an in-memory fs.StatFS.
type ModelStore interface {
	// Present reports whether model.pt, vocab.json, labels.json and
	// config.json all exist under ModelDir().
	Present(ctx context.Context) (bool, error)
	ModelDir() string
}

// StatModelStore implements ModelStore over any fs.StatFS (e.g. os.DirFS,
// or an fstest.MapFS in tests).
type StatModelStore struct {
	FS  fs.StatFS
	Dir string
}

var requiredArtifacts = []string{"model.pt", "vocab.json", "labels.json", "config.json"}

func (s *StatModelStore) ModelDir() string { return s.Dir }

func (s *StatModelStore) Present(ctx context.Context) (bool, error) {
	for _, name := range requiredArtifacts {
		if _, err := s.FS.Stat(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}
