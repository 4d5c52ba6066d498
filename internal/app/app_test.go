package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vavlxxx/feedfusion/internal/common"
)

type fakeBroker struct {
	scheduled []string
	consumed  []string
}

func (b *fakeBroker) Enqueue(context.Context, string, any) error { return nil }
func (b *fakeBroker) Schedule(_ string, taskName string, _ func() any) error {
	b.scheduled = append(b.scheduled, taskName)
	return nil
}
func (b *fakeBroker) Consume(taskName string, _ func(context.Context, []byte) error) error {
	b.consumed = append(b.consumed, taskName)
	return nil
}
func (b *fakeBroker) Run(context.Context) error { return nil }
func (b *fakeBroker) Close() error              { return nil }

func TestRegisterScheduledTasks_RespectsFeatureGates(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Broker.EnableSubsCheck = false
	cfg.Broker.EnableMLAutocategorization = false
	cfg.Broker.EnableMLAutotrain = false

	broker := &fakeBroker{}
	a := &App{Config: cfg, Broker: broker, Logger: common.NewSilentLogger()}

	require.NoError(t, a.RegisterScheduledTasks())
	assert.Equal(t, []string{"parse_rss"}, broker.scheduled)
}

func TestRegisterScheduledTasks_SkipsClassifierSchedulesWhenAbsent(t *testing.T) {
	cfg := common.NewDefaultConfig()
	broker := &fakeBroker{}
	a := &App{Config: cfg, Broker: broker, Logger: common.NewSilentLogger()}

	require.NoError(t, a.RegisterScheduledTasks())
	assert.ElementsMatch(t, []string{"parse_rss", "check_subs"}, broker.scheduled)
}

func TestRegisterConsumers_SkipsClassifierAndDeliveryWhenAbsent(t *testing.T) {
	cfg := common.NewDefaultConfig()
	broker := &fakeBroker{}
	a := &App{Config: cfg, Broker: broker, Logger: common.NewSilentLogger()}

	require.NoError(t, a.RegisterConsumers(context.Background()))
	assert.ElementsMatch(t, []string{"parse_rss", "process_news", "check_subs", "upload_training_dataset"}, broker.consumed)
}
