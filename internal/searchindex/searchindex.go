// Package searchindex implements the optional search index over
// Elasticsearch, grounded on the wider retrieval pack's
// elastic/go-elasticsearch/v8 usage for bulk document ingest.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// Index implements interfaces.SearchIndex over an Elasticsearch cluster.
type Index struct {
	client *elasticsearch.Client
	name   string
	logger *common.Logger
}

// New connects to the cluster at addresses and targets index name.
func New(addresses []string, name string, logger *common.Logger) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Index{client: client, name: name, logger: logger}, nil
}

// BulkAdd indexes docs, one item at a time so a single bad document never
// fails the rest. Errors are logged per item.
func (idx *Index) BulkAdd(ctx context.Context, docs []*models.News) error {
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			idx.logger.Error().Err(err).Int64("news_id", doc.ID).Msg("search index marshal failed")
			continue
		}
		req := esapi.IndexRequest{
			Index:      idx.name,
			DocumentID: strconv.FormatInt(doc.ID, 10),
			Body:       bytes.NewReader(body),
			Refresh:    "false",
		}
		res, err := req.Do(ctx, idx.client)
		if err != nil {
			idx.logger.Error().Err(err).Int64("news_id", doc.ID).Msg("search index request failed")
			continue
		}
		if res.IsError() {
			idx.logger.Error().Str("status", res.Status()).Int64("news_id", doc.ID).Msg("search index indexing error")
		}
		res.Body.Close()
	}
	return nil
}

// Search runs a case-insensitive multi-match query over title/summary/source
// with category and channel_id term filters, paginated by search_after on
// published with id as tiebreaker. The returned lastSortKey is the last
// hit's full sort tuple encoded as JSON; pass it back as searchAfter.
func (idx *Index) Search(ctx context.Context, query string, categories []string, channelIDs []int64, limit int, searchAfter string, recentFirst bool) (int64, []*models.News, string, error) {
	order := "desc"
	if !recentFirst {
		order = "asc"
	}

	must := []map[string]any{}
	if query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title", "summary", "source"},
			},
		})
	}
	filter := []map[string]any{}
	if len(categories) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"category": categories}})
	}
	if len(channelIDs) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"channel_id": channelIDs}})
	}

	body := map[string]any{
		"size": limit,
		"sort": []map[string]any{
			{"published": map[string]any{"order": order}},
			{"id": map[string]any{"order": order}},
		},
		"query": map[string]any{
			"bool": map[string]any{
				"must":   must,
				"filter": filter,
			},
		},
	}
	if searchAfter != "" {
		var after []any
		if err := json.Unmarshal([]byte(searchAfter), &after); err != nil {
			return 0, nil, "", fmt.Errorf("decode search_after cursor: %w", err)
		}
		body["search_after"] = after
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, "", fmt.Errorf("marshal search query: %w", err)
	}

	res, err := idx.client.Search(
		idx.client.Search.WithContext(ctx),
		idx.client.Search.WithIndex(idx.name),
		idx.client.Search.WithBody(bytes.NewReader(encoded)),
	)
	if err != nil {
		return 0, nil, "", fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, "", fmt.Errorf("search index returned status %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, nil, "", fmt.Errorf("decode search response: %w", err)
	}

	rows := make([]*models.News, 0, len(parsed.Hits.Hits))
	var lastSortKey string
	for _, hit := range parsed.Hits.Hits {
		var n models.News
		if err := json.Unmarshal(hit.Source, &n); err != nil {
			continue
		}
		rows = append(rows, &n)
		if len(hit.Sort) > 0 {
			if key, err := json.Marshal(hit.Sort); err == nil {
				lastSortKey = string(key)
			}
		}
	}
	return parsed.Hits.Total.Value, rows, lastSortKey, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
			Sort   []any           `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

var _ interfaces.SearchIndex = (*Index)(nil)
