package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
)

// repo[T] implements the uniform add/get_one/get_one_or_none/
// get_all_filtered/edit/delete/count contract shared by every entity
// repository, on top of GORM.
type repo[T any] struct {
	tx     *gorm.DB
	entity string
}

func (r *repo[T]) add(ctx context.Context, row *T) error {
	if err := r.tx.WithContext(ctx).Create(row).Error; err != nil {
		return wrapWriteErr(r.entity, err)
	}
	return nil
}

func (r *repo[T]) addBulk(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.tx.WithContext(ctx).Create(rows).Error; err != nil {
		return wrapWriteErr(r.entity, err)
	}
	return nil
}

func (r *repo[T]) getOne(ctx context.Context, id int64) (*T, error) {
	row, err := r.getOneOrNone(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperrors.NotFound(r.entity, id)
	}
	return row, nil
}

func (r *repo[T]) getOneOrNone(ctx context.Context, id int64) (*T, error) {
	if id < -(1<<31) || id > (1<<31-1) {
		return nil, apperrors.ValueOutOfRange("id", id)
	}
	var row T
	err := r.tx.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s get_one_or_none: %w", r.entity, err)
	}
	return &row, nil
}

func (r *repo[T]) getAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*T, error) {
	q := r.tx.WithContext(ctx)
	for k, v := range filter {
		q = q.Where(fmt.Sprintf("%s = ?", k), v)
	}
	var rows []*T
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s get_all_filtered: %w", r.entity, err)
	}
	return rows, nil
}

func (r *repo[T]) edit(ctx context.Context, id int64, patch map[string]any, ensureExistence bool) error {
	res := r.tx.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return wrapWriteErr(r.entity, res.Error)
	}
	if ensureExistence && res.RowsAffected == 0 {
		return apperrors.NotFound(r.entity, id)
	}
	return nil
}

func (r *repo[T]) delete(ctx context.Context, id int64, ensureExistence bool) error {
	res := r.tx.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return fmt.Errorf("%s delete: %w", r.entity, res.Error)
	}
	if ensureExistence && res.RowsAffected == 0 {
		return apperrors.NotFound(r.entity, id)
	}
	return nil
}

func (r *repo[T]) count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	q := r.tx.WithContext(ctx).Model(new(T))
	for k, v := range filter {
		q = q.Where(fmt.Sprintf("%s = ?", k), v)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%s count: %w", r.entity, err)
	}
	return n, nil
}

// wrapWriteErr maps a unique-constraint violation to apperrors.ErrObjectExists;
// every other error passes through wrapped with entity context.
func wrapWriteErr(entity string, err error) error {
	if isUniqueViolation(err) {
		return apperrors.ObjectExists(entity, err.Error())
	}
	return fmt.Errorf("%s write: %w", entity, err)
}
