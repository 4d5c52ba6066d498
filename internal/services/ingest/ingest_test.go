package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vavlxxx/feedfusion/internal/services/poller"
)

func TestIngestTask_RoundTripsAttemptCounter(t *testing.T) {
	task := ingestTask{
		ProcessNewsTask: poller.ProcessNewsTask{
			ChannelID: 7,
			Entries: []poller.NormalizedEntry{
				{Link: "https://example.com/a", Title: "a", Published: time.Now().UTC()},
			},
		},
		Attempt: 2,
	}

	body, err := json.Marshal(task)
	assert.NoError(t, err)

	var decoded ingestTask
	assert.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, 2, decoded.Attempt)
	assert.Equal(t, int64(7), decoded.ChannelID)
	assert.Len(t, decoded.Entries, 1)
}

func TestNew_AllowsNilSearchIndex(t *testing.T) {
	w := New(nil, nil, nil, nil)
	assert.Nil(t, w.index)
}
