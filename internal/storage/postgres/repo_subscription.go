package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type subscriptionRepo struct {
	r  repo[models.Subscription]
	tx *gorm.DB
}

func newSubscriptionRepo(tx *gorm.DB) *subscriptionRepo {
	return &subscriptionRepo{r: repo[models.Subscription]{tx: tx, entity: "subscription"}, tx: tx}
}

func (s *subscriptionRepo) Add(ctx context.Context, row *models.Subscription) error {
	return s.r.add(ctx, row)
}
func (s *subscriptionRepo) GetOne(ctx context.Context, id int64) (*models.Subscription, error) {
	return s.r.getOne(ctx, id)
}
func (s *subscriptionRepo) GetOneOrNone(ctx context.Context, id int64) (*models.Subscription, error) {
	return s.r.getOneOrNone(ctx, id)
}
func (s *subscriptionRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.Subscription, error) {
	return s.r.getAllFiltered(ctx, filter)
}
func (s *subscriptionRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return s.r.edit(ctx, id, patch, ensure)
}
func (s *subscriptionRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return s.r.delete(ctx, id, ensure)
}
func (s *subscriptionRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return s.r.count(ctx, filter)
}

// GetAllWithUser joins every subscription with its user's telegram id, for
// the fan-out planner's per-tick walk.
func (s *subscriptionRepo) GetAllWithUser(ctx context.Context) ([]*models.Subscription, map[int64]*models.TelegramUser, error) {
	var subs []*models.Subscription
	if err := s.tx.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, nil, fmt.Errorf("subscription get_all_with_user: %w", err)
	}

	userIDs := make([]int64, 0, len(subs))
	seen := make(map[int64]bool)
	for _, sub := range subs {
		if !seen[sub.UserID] {
			seen[sub.UserID] = true
			userIDs = append(userIDs, sub.UserID)
		}
	}

	users := make(map[int64]*models.TelegramUser, len(userIDs))
	if len(userIDs) > 0 {
		var rows []*models.TelegramUser
		if err := s.tx.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
			return nil, nil, fmt.Errorf("subscription get_all_with_user users: %w", err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}
	return subs, users, nil
}

var _ interfaces.SubscriptionRepo = (*subscriptionRepo)(nil)
