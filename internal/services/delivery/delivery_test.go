package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type fakeTransport struct {
	sendTextErr  error
	sendPhotoErr error
	textCalls    int
	photoCalls   int
}

func (t *fakeTransport) SendText(context.Context, string, string) error {
	t.textCalls++
	return t.sendTextErr
}
func (t *fakeTransport) SendPhoto(context.Context, string, string, string) error {
	t.photoCalls++
	return t.sendPhotoErr
}

type fakeDelivery struct {
	body         []byte
	headers      map[string]any
	acked        bool
	requeued     map[string]any
	deadLettered map[string]any
}

func (d *fakeDelivery) Body() []byte             { return d.body }
func (d *fakeDelivery) Headers() map[string]any  { return d.headers }
func (d *fakeDelivery) Ack() error                { d.acked = true; return nil }
func (d *fakeDelivery) Requeue(_ context.Context, h map[string]any) error {
	d.requeued = h
	return nil
}
func (d *fakeDelivery) DeadLetter(_ context.Context, h map[string]any) error {
	d.deadLettered = h
	return nil
}

func TestHandle_InvalidJSONDeadLetters(t *testing.T) {
	c := New(&fakeTransport{}, time.Second, common.NewSilentLogger())
	d := &fakeDelivery{body: []byte("not json"), headers: map[string]any{}}

	require.NoError(t, c.Handle(context.Background(), d))
	assert.Equal(t, "invalid_json", d.deadLettered[models.HeaderErrorReason])
}

func TestHandle_SuccessfulSendAcks(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, time.Second, common.NewSilentLogger())

	body, _ := json.Marshal(models.DeliveryMessage{TelegramID: "123", News: models.News{Title: "t"}})
	d := &fakeDelivery{body: body, headers: map[string]any{}}

	require.NoError(t, c.Handle(context.Background(), d))
	assert.True(t, d.acked)
	assert.Equal(t, 1, transport.textCalls)
}

func TestHandle_WithImageSendsPhoto(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, time.Second, common.NewSilentLogger())

	body, _ := json.Marshal(models.DeliveryMessage{TelegramID: "123", News: models.News{Title: "t", Image: "https://example.com/a.jpg"}})
	d := &fakeDelivery{body: body, headers: map[string]any{}}

	require.NoError(t, c.Handle(context.Background(), d))
	assert.Equal(t, 1, transport.photoCalls)
	assert.Equal(t, 0, transport.textCalls)
}

func TestHandle_SendFailureRequeuesWithIncrementedRetries(t *testing.T) {
	transport := &fakeTransport{sendTextErr: errors.New("boom")}
	c := New(transport, time.Second, common.NewSilentLogger())

	body, _ := json.Marshal(models.DeliveryMessage{TelegramID: "123", News: models.News{Title: "t"}})
	d := &fakeDelivery{body: body, headers: map[string]any{models.HeaderRetries: int32(2)}}

	require.NoError(t, c.Handle(context.Background(), d))
	assert.Nil(t, d.deadLettered)
	require.NotNil(t, d.requeued)
	assert.Equal(t, int32(3), d.requeued[models.HeaderRetries])
}

func TestHandle_RetriesExhaustedDeadLetters(t *testing.T) {
	transport := &fakeTransport{sendTextErr: errors.New("boom")}
	c := New(transport, time.Second, common.NewSilentLogger())

	body, _ := json.Marshal(models.DeliveryMessage{TelegramID: "123", News: models.News{Title: "t"}})
	d := &fakeDelivery{body: body, headers: map[string]any{models.HeaderRetries: int32(models.MaxProcessingRetries)}}

	require.NoError(t, c.Handle(context.Background(), d))
	assert.Nil(t, d.requeued)
	require.NotNil(t, d.deadLettered)
	assert.Equal(t, "telegram_send_failed", d.deadLettered[models.HeaderErrorReason])
}
