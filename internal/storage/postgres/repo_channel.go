package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type channelRepo struct{ r repo[models.Channel] }

func newChannelRepo(tx *gorm.DB) *channelRepo {
	return &channelRepo{r: repo[models.Channel]{tx: tx, entity: "channel"}}
}

func (c *channelRepo) Add(ctx context.Context, ch *models.Channel) error { return c.r.add(ctx, ch) }
func (c *channelRepo) GetOne(ctx context.Context, id int64) (*models.Channel, error) {
	return c.r.getOne(ctx, id)
}
func (c *channelRepo) GetOneOrNone(ctx context.Context, id int64) (*models.Channel, error) {
	return c.r.getOneOrNone(ctx, id)
}
func (c *channelRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.Channel, error) {
	return c.r.getAllFiltered(ctx, filter)
}
func (c *channelRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return c.r.edit(ctx, id, patch, ensure)
}
func (c *channelRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return c.r.delete(ctx, id, ensure)
}
func (c *channelRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return c.r.count(ctx, filter)
}

var _ interfaces.ChannelRepo = (*channelRepo)(nil)
