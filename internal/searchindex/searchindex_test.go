package searchindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/models"
)

func TestBulkAdd_IndexesEachDocument(t *testing.T) {
	var indexed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		indexed++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	idx, err := New([]string{srv.URL}, "news", common.NewSilentLogger())
	require.NoError(t, err)

	docs := []*models.News{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	require.NoError(t, idx.BulkAdd(context.Background(), docs))
	assert.Equal(t, 2, indexed)
}

func TestSearch_ParsesHitsAndTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"hits": map[string]any{
				"total": map[string]any{"value": 1},
				"hits": []map[string]any{
					{
						"_source": json.RawMessage(`{"id":1,"channel_id":1,"title":"hello","link":"l","published":"2026-01-01T00:00:00Z","content_hash":"h"}`),
						"sort":    []any{"2026-01-01T00:00:00Z"},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	idx, err := New([]string{srv.URL}, "news", common.NewSilentLogger())
	require.NoError(t, err)

	total, rows, lastKey, err := idx.Search(context.Background(), "hello", nil, nil, 10, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Title)
	assert.NotEmpty(t, lastKey)
}
