package dataset

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type fakeBroker struct {
	enqueued []string
	err      error
}

func (b *fakeBroker) Enqueue(_ context.Context, taskName string, _ any) error {
	b.enqueued = append(b.enqueued, taskName)
	return b.err
}
func (b *fakeBroker) Schedule(string, string, func() any) error                 { return nil }
func (b *fakeBroker) Consume(string, func(context.Context, []byte) error) error { return nil }
func (b *fakeBroker) Run(context.Context) error                                 { return nil }
func (b *fakeBroker) Close() error                                              { return nil }

type fakeStore struct{ uow *fakeUOW }

func (s *fakeStore) Begin(context.Context) (interfaces.UnitOfWork, error) { return s.uow, nil }
func (s *fakeStore) Close() error                                         { return nil }

type fakeUOW struct {
	addedUpload  *models.DatasetUpload
	addedSamples []*models.DenormalizedSample
	editedPatch  map[string]any
	duplicates   map[string]bool
}

func (u *fakeUOW) Channels() interfaces.ChannelRepo { return nil }
func (u *fakeUOW) News() interfaces.NewsRepo        { return nil }
func (u *fakeUOW) Samples() interfaces.SampleRepo {
	return &fakeSampleRepo{u: u, duplicates: u.duplicates}
}
func (u *fakeUOW) Subscriptions() interfaces.SubscriptionRepo { return nil }
func (u *fakeUOW) Uploads() interfaces.UploadRepo             { return &fakeUploadRepo{u: u} }
func (u *fakeUOW) Trainings() interfaces.TrainingRepo         { return nil }
func (u *fakeUOW) Commit(context.Context) error               { return nil }
func (u *fakeUOW) Rollback(context.Context) error             { return nil }

type fakeSampleRepo struct {
	u          *fakeUOW
	duplicates map[string]bool
}

func (r *fakeSampleRepo) Add(context.Context, *models.DenormalizedSample) error { return nil }
func (r *fakeSampleRepo) AddBulk(_ context.Context, rows []*models.DenormalizedSample) error {
	r.u.addedSamples = rows
	return nil
}
func (r *fakeSampleRepo) AddBulkUpsert(_ context.Context, rows []*models.DenormalizedSample) ([]*models.DenormalizedSample, error) {
	var inserted []*models.DenormalizedSample
	for _, row := range rows {
		if r.duplicates[row.Title+"|"+row.Category] {
			continue
		}
		inserted = append(inserted, row)
	}
	r.u.addedSamples = inserted
	return inserted, nil
}
func (r *fakeSampleRepo) GetOne(context.Context, int64) (*models.DenormalizedSample, error) {
	return nil, nil
}
func (r *fakeSampleRepo) GetOneOrNone(context.Context, int64) (*models.DenormalizedSample, error) {
	return nil, nil
}
func (r *fakeSampleRepo) GetAllFiltered(context.Context, interfaces.Filter) ([]*models.DenormalizedSample, error) {
	return nil, nil
}
func (r *fakeSampleRepo) Edit(context.Context, int64, map[string]any, bool) error { return nil }
func (r *fakeSampleRepo) Delete(context.Context, int64, bool) error               { return nil }
func (r *fakeSampleRepo) Count(context.Context, interfaces.Filter) (int64, error) { return 0, nil }
func (r *fakeSampleRepo) UpsertFromCorrection(context.Context, string, string, string) error {
	return nil
}
func (r *fakeSampleRepo) MarkUsedInTraining(context.Context, []int64) (int, error) { return 0, nil }
func (r *fakeSampleRepo) GetRandomUsedSamples(context.Context, int) ([]*models.DenormalizedSample, error) {
	return nil, nil
}

type fakeUploadRepo struct{ u *fakeUOW }

func (r *fakeUploadRepo) Add(_ context.Context, row *models.DatasetUpload) error {
	row.ID = 1
	r.u.addedUpload = row
	return nil
}
func (r *fakeUploadRepo) GetOne(context.Context, int64) (*models.DatasetUpload, error) {
	return nil, nil
}
func (r *fakeUploadRepo) GetOneOrNone(context.Context, int64) (*models.DatasetUpload, error) {
	return nil, nil
}
func (r *fakeUploadRepo) GetAllFiltered(context.Context, interfaces.Filter) ([]*models.DatasetUpload, error) {
	return nil, nil
}
func (r *fakeUploadRepo) Edit(_ context.Context, _ int64, patch map[string]any, _ bool) error {
	r.u.editedPatch = patch
	return nil
}
func (r *fakeUploadRepo) Delete(context.Context, int64, bool) error               { return nil }
func (r *fakeUploadRepo) Count(context.Context, interfaces.Filter) (int64, error) { return 0, nil }

func TestAccept_RejectsMissingRequiredColumns(t *testing.T) {
	svc := New(&fakeStore{uow: &fakeUOW{}}, &fakeBroker{})
	_, err := svc.Accept(context.Background(), strings.NewReader("title,summary\nfoo,bar\n"))
	assert.ErrorIs(t, err, apperrors.ErrMissingCSVHeaders)
}

func TestAccept_CreatesUploadAndEnqueues(t *testing.T) {
	broker := &fakeBroker{}
	uow := &fakeUOW{}
	svc := New(&fakeStore{uow: uow}, broker)

	id, err := svc.Accept(context.Background(), strings.NewReader("title,category\nfoo,sports\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, []string{"upload_training_dataset"}, broker.enqueued)
}

func TestAccept_EnqueueFailureSurfacesBrokerUnavailable(t *testing.T) {
	broker := &fakeBroker{err: errors.New("down")}
	svc := New(&fakeStore{uow: &fakeUOW{}}, broker)

	_, err := svc.Accept(context.Background(), strings.NewReader("title,category\nfoo,sports\n"))
	assert.ErrorIs(t, err, apperrors.ErrBrokerUnavailable)
}

func TestHandleUploadTrainingDataset_SkipsInvalidRows(t *testing.T) {
	uow := &fakeUOW{}
	svc := New(&fakeStore{uow: uow}, &fakeBroker{})

	csvBody := "title,category\nfoo,sports\n,missing-title\nbar,\n"
	payload := []byte(`{"upload_id":1,"csv":"` + escapeJSON(csvBody) + `"}`)

	require.NoError(t, svc.HandleUploadTrainingDataset(context.Background(), payload))
	require.Len(t, uow.addedSamples, 1)
	assert.Equal(t, "foo", uow.addedSamples[0].Title)
	assert.Equal(t, 1, uow.editedPatch["uploads"])
	assert.Equal(t, 2, uow.editedPatch["errors"])
	assert.Equal(t, true, uow.editedPatch["is_completed"])
}

func TestHandleUploadTrainingDataset_CountsDuplicateKeyAsError(t *testing.T) {
	uow := &fakeUOW{duplicates: map[string]bool{"foo|sports": true}}
	svc := New(&fakeStore{uow: uow}, &fakeBroker{})

	csvBody := "title,category\nfoo,sports\nbaz,politics\n"
	payload := []byte(`{"upload_id":1,"csv":"` + escapeJSON(csvBody) + `"}`)

	require.NoError(t, svc.HandleUploadTrainingDataset(context.Background(), payload))
	require.Len(t, uow.addedSamples, 1)
	assert.Equal(t, "baz", uow.addedSamples[0].Title)
	assert.Equal(t, 1, uow.editedPatch["uploads"])
	assert.Equal(t, 1, uow.editedPatch["errors"])
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
