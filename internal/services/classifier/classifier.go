// Package classifier implements the classifier loop:
// gates auto-categorization and retraining on model-artifact presence,
// batches uncategorized News through the classifier's prediction
// interface, and drives training-job exclusivity and replay sampling.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// categorizeTask is the categorize_uncategorized_news payload — a
// snapshot taken by the scheduler so the worker never re-queries for
// "what's still uncategorized" (keeps the scheduler
// non-blocking; model load is on the worker").
type categorizeTask struct {
	Items []interfaces.PredictionInput `json:"items"`
}

// retrainWorkerTask is the retrain_model_worker payload.
type retrainWorkerTask struct {
	TrainingJobID int64 `json:"training_job_id"`
}

// Loop drives the check_for_uncategorized_news / categorize_uncategorized_news
// / retrain_model task trio.
type Loop struct {
	store      interfaces.Store
	broker     interfaces.Broker
	classifier interfaces.Classifier
	modelStore interfaces.ModelStore
	cfg        common.MLConfig
	logger     *common.Logger
}

// New builds a Loop. modelStore gates every categorization tick on
// artifact presence, per the REDESIGN FLAGS capability-check approach.
func New(store interfaces.Store, broker interfaces.Broker, classifier interfaces.Classifier, modelStore interfaces.ModelStore, cfg common.MLConfig, logger *common.Logger) *Loop {
	return &Loop{store: store, broker: broker, classifier: classifier, modelStore: modelStore, cfg: cfg, logger: logger}
}

// HandleCheckUncategorized is the check_for_uncategorized_news tick
// handler.
func (l *Loop) HandleCheckUncategorized(ctx context.Context, _ []byte) error {
	present, err := l.modelStore.Present(ctx)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	uow, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	rows, err := uow.News().GetUncategorized(ctx)
	if err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	items := make([]interfaces.PredictionInput, len(rows))
	for i, row := range rows {
		items[i] = interfaces.PredictionInput{NewsID: row.ID, Title: row.Title, Summary: row.Summary}
	}
	return l.broker.Enqueue(ctx, "categorize_uncategorized_news", categorizeTask{Items: items})
}

// HandleCategorize is the categorize_uncategorized_news worker handler
//
func (l *Loop) HandleCategorize(ctx context.Context, payload []byte) error {
	var task categorizeTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode categorize_uncategorized_news payload: %w", err)
	}
	if len(task.Items) == 0 {
		return nil
	}

	results, err := l.classifier.PredictMany(ctx, task.Items)
	if err != nil {
		return err
	}
	known, err := l.classifier.KnownLabels(ctx)
	if err != nil {
		return err
	}
	knownSet := make(map[string]bool, len(known))
	for _, label := range known {
		knownSet[label] = true
	}

	uow, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Category == "" {
			continue
		}
		if !knownSet[res.Category] {
			l.logger.Error().Str("category", res.Category).Int64("news_id", res.NewsID).Msg("classifier returned unknown label, skipping")
			continue
		}
		if err := uow.News().Edit(ctx, res.NewsID, map[string]any{"category": res.Category}, false); err != nil {
			_ = uow.Rollback(ctx)
			return err
		}
	}
	return uow.Commit(ctx)
}

// TriggerRetrain is called by the retrain_model cron tick and by the
// admin on-demand path ("retrain_model tick / on-demand
// admin call"), steps 1-2: gate on one-training-per-model_dir, create
// the TrainingJob row, commit, then enqueue the worker-side task.
func (l *Loop) TriggerRetrain(ctx context.Context) error {
	uow, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}

	existing, err := uow.Trainings().GetInProgress(ctx, l.cfg.ModelDir)
	if err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if existing != nil {
		_ = uow.Rollback(ctx)
		return apperrors.ModelAlreadyTraining(l.cfg.ModelDir)
	}

	row := &models.TrainingJob{
		ModelDir:   l.cfg.ModelDir,
		Device:     l.cfg.Device,
		InProgress: true,
	}
	if err := uow.Trainings().Add(ctx, row); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	if err := l.broker.Enqueue(ctx, "retrain_model_worker", retrainWorkerTask{TrainingJobID: row.ID}); err != nil {
		l.failJob(ctx, row.ID, "enqueue failed")
		return fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	return nil
}

// HandleRetrainWorker runs the retrain worker task end to end.
func (l *Loop) HandleRetrainWorker(ctx context.Context, payload []byte) error {
	var task retrainWorkerTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode retrain_model_worker payload: %w", err)
	}

	uow, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}

	newSamples, err := uow.Samples().GetAllFiltered(ctx, interfaces.Filter{"used_in_training": false})
	if err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	if len(newSamples) < l.cfg.MinNewSamplesForTrain {
		l.finishJob(ctx, task.TrainingJobID, nil, "not enough new samples")
		return nil
	}

	batch, resume, mode, err := l.selectTrainingBatch(ctx, newSamples)
	if err != nil {
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("batch selection failed: %v", err))
		return nil
	}

	metrics, err := l.classifier.Train(ctx, batch, interfaces.TrainConfig{"mode": mode}, resume)
	if err != nil {
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("training failed: %v", err))
		return nil
	}

	ids := make([]int64, len(newSamples))
	for i, s := range newSamples {
		ids[i] = s.ID
	}
	markUow, err := l.store.Begin(ctx)
	if err != nil {
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("mark_used_in_training failed: %v", err))
		return nil
	}
	if _, err := markUow.Samples().MarkUsedInTraining(ctx, ids); err != nil {
		_ = markUow.Rollback(ctx)
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("mark_used_in_training failed: %v", err))
		return nil
	}
	if metrics == nil {
		metrics = map[string]any{}
	}
	metrics["mode"] = mode
	// The job is finalized in the same unit-of-work that marks the samples,
	// so both commit together or neither does.
	if err := markUow.Trainings().Edit(ctx, task.TrainingJobID, map[string]any{"in_progress": false, "metrics": metrics}, false); err != nil {
		_ = markUow.Rollback(ctx)
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("training job finalization failed: %v", err))
		return nil
	}
	if err := markUow.Commit(ctx); err != nil {
		l.finishJob(ctx, task.TrainingJobID, nil, fmt.Sprintf("mark_used_in_training commit failed: %v", err))
		return nil
	}
	return nil
}

// selectTrainingBatch picks which samples to train on.
func (l *Loop) selectTrainingBatch(ctx context.Context, newSamples []*models.DenormalizedSample) ([]interfaces.TrainSample, bool, string, error) {
	present, err := l.modelStore.Present(ctx)
	if err != nil {
		return nil, false, "", err
	}
	if !present {
		return toTrainSamples(newSamples), false, "full_no_model", nil
	}

	known, err := l.classifier.KnownLabels(ctx)
	if err != nil {
		return nil, false, "", err
	}
	knownSet := make(map[string]bool, len(known))
	for _, label := range known {
		knownSet[label] = true
	}
	for _, s := range newSamples {
		if !knownSet[s.Category] {
			return l.fullRetrainBatch(ctx, newSamples)
		}
	}

	return l.incrementalBatch(ctx, newSamples)
}

func (l *Loop) fullRetrainBatch(ctx context.Context, newSamples []*models.DenormalizedSample) ([]interfaces.TrainSample, bool, string, error) {
	uow, err := l.store.Begin(ctx)
	if err != nil {
		return nil, false, "", err
	}
	used, err := uow.Samples().GetAllFiltered(ctx, interfaces.Filter{"used_in_training": true})
	if err != nil {
		_ = uow.Rollback(ctx)
		return nil, false, "", err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, false, "", err
	}
	all := append(append([]*models.DenormalizedSample{}, used...), newSamples...)
	return toTrainSamples(all), false, "full_new_label", nil
}

func (l *Loop) incrementalBatch(ctx context.Context, newSamples []*models.DenormalizedSample) ([]interfaces.TrainSample, bool, string, error) {
	replaySize := int(float64(len(newSamples)) * l.cfg.ReplayRatio)
	if replaySize > l.cfg.MaxReplaySamples {
		replaySize = l.cfg.MaxReplaySamples
	}

	uow, err := l.store.Begin(ctx)
	if err != nil {
		return nil, false, "", err
	}
	replay, err := uow.Samples().GetRandomUsedSamples(ctx, replaySize)
	if err != nil {
		_ = uow.Rollback(ctx)
		return nil, false, "", err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, false, "", err
	}

	all := append(append([]*models.DenormalizedSample{}, newSamples...), replay...)
	return toTrainSamples(all), true, "incremental", nil
}

func toTrainSamples(rows []*models.DenormalizedSample) []interfaces.TrainSample {
	out := make([]interfaces.TrainSample, len(rows))
	for i, r := range rows {
		out[i] = interfaces.TrainSample{Title: r.Title, Summary: r.Summary, Category: r.Category}
	}
	return out
}

// finishJob edits the TrainingJob to in_progress=false, recording metrics
// and/or a details string. Errors doing so are
// logged, not propagated — the task has already either succeeded or
// failed and must not be retried from scratch.
func (l *Loop) finishJob(ctx context.Context, jobID int64, metrics map[string]any, details string) {
	patch := map[string]any{"in_progress": false}
	if metrics != nil {
		patch["metrics"] = metrics
	}
	if details != "" {
		patch["details"] = details
	}
	uow, err := l.store.Begin(ctx)
	if err != nil {
		l.logger.Error().Err(err).Int64("training_job_id", jobID).Msg("could not finalize training job")
		return
	}
	if err := uow.Trainings().Edit(ctx, jobID, patch, false); err != nil {
		_ = uow.Rollback(ctx)
		l.logger.Error().Err(err).Int64("training_job_id", jobID).Msg("could not finalize training job")
		return
	}
	if err := uow.Commit(ctx); err != nil {
		l.logger.Error().Err(err).Int64("training_job_id", jobID).Msg("could not commit training job finalization")
	}
}

func (l *Loop) failJob(ctx context.Context, jobID int64, details string) {
	l.finishJob(ctx, jobID, nil, details)
}
