package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type uploadRepo struct{ r repo[models.DatasetUpload] }

func newUploadRepo(tx *gorm.DB) *uploadRepo {
	return &uploadRepo{r: repo[models.DatasetUpload]{tx: tx, entity: "dataset_upload"}}
}

func (u *uploadRepo) Add(ctx context.Context, row *models.DatasetUpload) error {
	return u.r.add(ctx, row)
}
func (u *uploadRepo) GetOne(ctx context.Context, id int64) (*models.DatasetUpload, error) {
	return u.r.getOne(ctx, id)
}
func (u *uploadRepo) GetOneOrNone(ctx context.Context, id int64) (*models.DatasetUpload, error) {
	return u.r.getOneOrNone(ctx, id)
}
func (u *uploadRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.DatasetUpload, error) {
	return u.r.getAllFiltered(ctx, filter)
}
func (u *uploadRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return u.r.edit(ctx, id, patch, ensure)
}
func (u *uploadRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return u.r.delete(ctx, id, ensure)
}
func (u *uploadRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return u.r.count(ctx, filter)
}

var _ interfaces.UploadRepo = (*uploadRepo)(nil)
