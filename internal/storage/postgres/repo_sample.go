package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type sampleRepo struct {
	r  repo[models.DenormalizedSample]
	tx *gorm.DB
}

func newSampleRepo(tx *gorm.DB) *sampleRepo {
	return &sampleRepo{r: repo[models.DenormalizedSample]{tx: tx, entity: "sample"}, tx: tx}
}

func (s *sampleRepo) Add(ctx context.Context, row *models.DenormalizedSample) error {
	return s.r.add(ctx, row)
}
func (s *sampleRepo) AddBulk(ctx context.Context, rows []*models.DenormalizedSample) error {
	return s.r.addBulk(ctx, rows)
}

// AddBulkUpsert inserts rows, ignoring conflicts on the (title, category)
// unique key, never conflict-updating, so a re-uploaded CSV never fails
// the whole batch on a duplicate row. Each row is its own INSERT, and a
// row counts as inserted only when that INSERT affected a row; the
// returned slice holds exactly those rows.
func (s *sampleRepo) AddBulkUpsert(ctx context.Context, rows []*models.DenormalizedSample) ([]*models.DenormalizedSample, error) {
	var inserted []*models.DenormalizedSample
	for _, row := range rows {
		res := s.tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "title"}, {Name: "category"}},
				DoNothing: true,
			}).
			Create(row)
		if res.Error != nil {
			return nil, fmt.Errorf("sample add_bulk_upsert: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			inserted = append(inserted, row)
		}
	}
	return inserted, nil
}
func (s *sampleRepo) GetOne(ctx context.Context, id int64) (*models.DenormalizedSample, error) {
	return s.r.getOne(ctx, id)
}
func (s *sampleRepo) GetOneOrNone(ctx context.Context, id int64) (*models.DenormalizedSample, error) {
	return s.r.getOneOrNone(ctx, id)
}
func (s *sampleRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.DenormalizedSample, error) {
	return s.r.getAllFiltered(ctx, filter)
}
func (s *sampleRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return s.r.edit(ctx, id, patch, ensure)
}
func (s *sampleRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return s.r.delete(ctx, id, ensure)
}
func (s *sampleRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return s.r.count(ctx, filter)
}

// UpsertFromCorrection is the admin-correction supplement:
// keyed on (title, category) as the natural key, so the same correction
// applied twice never duplicates a sample.
func (s *sampleRepo) UpsertFromCorrection(ctx context.Context, title, summary, category string) error {
	row := &models.DenormalizedSample{Title: title, Summary: summary, Category: category}
	return s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title"}, {Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
		}).
		Create(row).Error
}

// MarkUsedInTraining flips used_in_training=true for ids, atomically: the
// caller's transaction ensures either all rows flip or (on rollback) none do.
func (s *sampleRepo) MarkUsedInTraining(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.tx.WithContext(ctx).
		Model(&models.DenormalizedSample{}).
		Where("id IN ?", ids).
		Update("used_in_training", true)
	if res.Error != nil {
		return 0, fmt.Errorf("sample mark_used_in_training: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// GetRandomUsedSamples returns up to n already-used rows for incremental
// training replay.
func (s *sampleRepo) GetRandomUsedSamples(ctx context.Context, n int) ([]*models.DenormalizedSample, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []*models.DenormalizedSample
	err := s.tx.WithContext(ctx).
		Where("used_in_training = ?", true).
		Order("random()").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sample get_random_used_samples: %w", err)
	}
	return rows, nil
}

var _ interfaces.SampleRepo = (*sampleRepo)(nil)
