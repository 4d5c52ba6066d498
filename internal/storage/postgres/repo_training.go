package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type trainingRepo struct {
	r  repo[models.TrainingJob]
	tx *gorm.DB
}

func newTrainingRepo(tx *gorm.DB) *trainingRepo {
	return &trainingRepo{r: repo[models.TrainingJob]{tx: tx, entity: "training_job"}, tx: tx}
}

func (t *trainingRepo) Add(ctx context.Context, row *models.TrainingJob) error { return t.r.add(ctx, row) }
func (t *trainingRepo) GetOne(ctx context.Context, id int64) (*models.TrainingJob, error) {
	return t.r.getOne(ctx, id)
}
func (t *trainingRepo) GetOneOrNone(ctx context.Context, id int64) (*models.TrainingJob, error) {
	return t.r.getOneOrNone(ctx, id)
}
func (t *trainingRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.TrainingJob, error) {
	return t.r.getAllFiltered(ctx, filter)
}
func (t *trainingRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return t.r.edit(ctx, id, patch, ensure)
}
func (t *trainingRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return t.r.delete(ctx, id, ensure)
}
func (t *trainingRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return t.r.count(ctx, filter)
}

// GetInProgress is the uniqueness probe used to enforce that at most one
// training job per model_dir runs at a time: consulted
// before starting a job, backed by the conditional unique index on
// (model_dir) WHERE in_progress (see internal/storage/postgres/migrations).
func (t *trainingRepo) GetInProgress(ctx context.Context, modelDir string) (*models.TrainingJob, error) {
	var row models.TrainingJob
	err := t.tx.WithContext(ctx).
		Where("model_dir = ? AND in_progress = ?", modelDir, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("training get_in_progress: %w", err)
	}
	return &row, nil
}

var _ interfaces.TrainingRepo = (*trainingRepo)(nil)
