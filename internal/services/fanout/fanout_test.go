package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// --- fake store/unit-of-work ---

type fakeStore struct {
	uow *fakeUOW
}

func (s *fakeStore) Begin(context.Context) (interfaces.UnitOfWork, error) { return s.uow, nil }
func (s *fakeStore) Close() error                                         { return nil }

type fakeUOW struct {
	subs      []*models.Subscription
	users     map[int64]*models.TelegramUser
	news      map[int64][]*models.News
	committed bool
	edits     map[int64]int64
}

func (u *fakeUOW) Channels() interfaces.ChannelRepo           { return nil }
func (u *fakeUOW) News() interfaces.NewsRepo                  { return &fakeNewsRepo{u: u} }
func (u *fakeUOW) Samples() interfaces.SampleRepo             { return nil }
func (u *fakeUOW) Subscriptions() interfaces.SubscriptionRepo { return &fakeSubRepo{u: u} }
func (u *fakeUOW) Uploads() interfaces.UploadRepo             { return nil }
func (u *fakeUOW) Trainings() interfaces.TrainingRepo         { return nil }
func (u *fakeUOW) Commit(context.Context) error               { u.committed = true; return nil }
func (u *fakeUOW) Rollback(context.Context) error              { return nil }

type fakeNewsRepo struct{ u *fakeUOW }

func (r *fakeNewsRepo) Add(context.Context, *models.News) error                 { return nil }
func (r *fakeNewsRepo) AddBulk(context.Context, []*models.News) error           { return nil }
func (r *fakeNewsRepo) GetOne(context.Context, int64) (*models.News, error)     { return nil, nil }
func (r *fakeNewsRepo) GetOneOrNone(context.Context, int64) (*models.News, error) {
	return nil, nil
}
func (r *fakeNewsRepo) GetAllFiltered(context.Context, interfaces.Filter) ([]*models.News, error) {
	return nil, nil
}
func (r *fakeNewsRepo) Edit(context.Context, int64, map[string]any, bool) error { return nil }
func (r *fakeNewsRepo) Delete(context.Context, int64, bool) error               { return nil }
func (r *fakeNewsRepo) Count(context.Context, interfaces.Filter) (int64, error) { return 0, nil }
func (r *fakeNewsRepo) GetRecent(_ context.Context, channelID, gt int64, _, _ int, _ bool) ([]*models.News, error) {
	var out []*models.News
	for _, n := range r.u.news[channelID] {
		if n.ID > gt {
			out = append(out, n)
		}
	}
	return out, nil
}
func (r *fakeNewsRepo) GetHashesByHashes(context.Context, []string) (map[string]bool, error) {
	return nil, nil
}
func (r *fakeNewsRepo) AddBulkUpsert(context.Context, []*models.News) ([]*models.News, error) {
	return nil, nil
}
func (r *fakeNewsRepo) SearchWithPagination(context.Context, int, int, string, []string, []int64, bool) (int64, []*models.News, error) {
	return 0, nil, nil
}

type fakeSubRepo struct{ u *fakeUOW }

func (r *fakeSubRepo) Add(context.Context, *models.Subscription) error { return nil }
func (r *fakeSubRepo) GetOne(context.Context, int64) (*models.Subscription, error) {
	return nil, nil
}
func (r *fakeSubRepo) GetOneOrNone(context.Context, int64) (*models.Subscription, error) {
	return nil, nil
}
func (r *fakeSubRepo) GetAllFiltered(context.Context, interfaces.Filter) ([]*models.Subscription, error) {
	return nil, nil
}
func (r *fakeSubRepo) Edit(_ context.Context, id int64, patch map[string]any, _ bool) error {
	r.u.edits[id] = patch["last_news_id"].(int64)
	return nil
}
func (r *fakeSubRepo) Delete(context.Context, int64, bool) error               { return nil }
func (r *fakeSubRepo) Count(context.Context, interfaces.Filter) (int64, error) { return 0, nil }
func (r *fakeSubRepo) GetAllWithUser(context.Context) ([]*models.Subscription, map[int64]*models.TelegramUser, error) {
	return r.u.subs, r.u.users, nil
}

// --- fake delivery queue ---

type fakeQueue struct {
	published []*models.DeliveryMessage
}

func (q *fakeQueue) Publish(_ context.Context, _ string, msg *models.DeliveryMessage, _ map[string]any) error {
	q.published = append(q.published, msg)
	return nil
}
func (q *fakeQueue) Consume(context.Context, string, interfaces.DeliveryHandler) error { return nil }
func (q *fakeQueue) Close() error                                                      { return nil }

func TestRun_PublishesUnseenNewsAndAdvancesWatermark(t *testing.T) {
	uow := &fakeUOW{
		subs:  []*models.Subscription{{ID: 1, UserID: 10, ChannelID: 5, LastNewsID: 2}},
		users: map[int64]*models.TelegramUser{10: {ID: 10, TelegramID: "chat-1"}},
		news: map[int64][]*models.News{
			5: {
				{ID: 3, ChannelID: 5, Title: "c"},
				{ID: 4, ChannelID: 5, Title: "d"},
			},
		},
		edits: map[int64]int64{},
	}
	store := &fakeStore{uow: uow}
	queue := &fakeQueue{}

	planner := New(store, queue, "telegram_news", common.NewSilentLogger())
	require.NoError(t, planner.Run(context.Background(), nil))

	assert.True(t, uow.committed)
	assert.Len(t, queue.published, 2)
	assert.Equal(t, int64(4), uow.edits[1])
}

func TestRun_SkipsSubscriptionWithoutTelegramID(t *testing.T) {
	uow := &fakeUOW{
		subs:  []*models.Subscription{{ID: 1, UserID: 10, ChannelID: 5, LastNewsID: 0}},
		users: map[int64]*models.TelegramUser{10: {ID: 10, TelegramID: ""}},
		news:  map[int64][]*models.News{5: {{ID: 1, ChannelID: 5}}},
		edits: map[int64]int64{},
	}
	store := &fakeStore{uow: uow}
	queue := &fakeQueue{}

	planner := New(store, queue, "telegram_news", common.NewSilentLogger())
	require.NoError(t, planner.Run(context.Background(), nil))

	assert.Empty(t, queue.published)
	assert.NotContains(t, uow.edits, int64(1))
}
