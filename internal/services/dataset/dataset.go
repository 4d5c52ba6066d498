// Package dataset implements CSV dataset upload: synchronous header
// validation followed by an asynchronous upload_training_dataset broker
// task that parses rows into DenormalizedSample and completes the
// DatasetUpload status record.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

var requiredColumns = []string{"title", "category"}

// uploadTask is the upload_training_dataset worker payload.
type uploadTask struct {
	UploadID int64  `json:"upload_id"`
	CSV      string `json:"csv"`
}

// Service validates and ingests bulk CSV sample uploads.
type Service struct {
	store  interfaces.Store
	broker interfaces.Broker
}

// New builds a Service.
func New(store interfaces.Store, broker interfaces.Broker) *Service {
	return &Service{store: store, broker: broker}
}

// Accept validates the header row synchronously, creates the
// DatasetUpload status record, and enqueues the asynchronous import.
// Returns the created record's id.
func (s *Service) Accept(ctx context.Context, r io.Reader) (int64, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read csv body: %w", err)
	}

	if err := validateHeader(body); err != nil {
		return 0, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	upload := &models.DatasetUpload{}
	if err := uow.Uploads().Add(ctx, upload); err != nil {
		_ = uow.Rollback(ctx)
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}

	if err := s.broker.Enqueue(ctx, "upload_training_dataset", uploadTask{UploadID: upload.ID, CSV: string(body)}); err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	return upload.ID, nil
}

// validateHeader fails synchronously with ErrMissingCSVHeaders when a
// required column is absent, so the caller gets immediate feedback
// instead of waiting on the async worker.
func validateHeader(body []byte) error {
	reader := csv.NewReader(strings.NewReader(string(body)))
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCSVDecode, err)
	}
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.ToLower(strings.TrimSpace(col))] = true
	}
	for _, required := range requiredColumns {
		if !present[required] {
			return apperrors.MissingCSVHeaders(required)
		}
	}
	return nil
}

// HandleUploadTrainingDataset is the upload_training_dataset worker
// handler: parses every row, bulk-inserts valid samples, and completes
// the DatasetUpload record with counts and per-row error details.
func (s *Service) HandleUploadTrainingDataset(ctx context.Context, payload []byte) error {
	var task uploadTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode upload_training_dataset payload: %w", err)
	}

	samples, details, errCount := parseRows(task.CSV)

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	inserted := samples
	if len(samples) > 0 {
		inserted, err = uow.Samples().AddBulkUpsert(ctx, samples)
		if err != nil {
			_ = uow.Rollback(ctx)
			return err
		}
		if skipped := len(samples) - len(inserted); skipped > 0 {
			errCount += skipped
			details = append(details, fmt.Sprintf("%d row(s) skipped: duplicate title/category already on file", skipped))
		}
	}

	patch := map[string]any{
		"uploads":      len(inserted),
		"errors":       errCount,
		"is_completed": true,
	}
	if len(details) > 0 {
		patch["details"] = details
	}
	if err := uow.Uploads().Edit(ctx, task.UploadID, patch, true); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	return uow.Commit(ctx)
}

func parseRows(body string) ([]*models.DenormalizedSample, []string, int) {
	reader := csv.NewReader(strings.NewReader(body))
	header, err := reader.Read()
	if err != nil {
		return nil, []string{"empty or unreadable csv body"}, 1
	}
	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var samples []*models.DenormalizedSample
	var details []string
	errCount := 0
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			details = append(details, fmt.Sprintf("row %d: %v", rowNum, err))
			errCount++
			continue
		}

		title := strings.TrimSpace(valueAt(row, columns, "title"))
		category := strings.TrimSpace(valueAt(row, columns, "category"))
		if title == "" || category == "" {
			details = append(details, fmt.Sprintf("row %d: missing title or category", rowNum))
			errCount++
			continue
		}

		samples = append(samples, &models.DenormalizedSample{
			Title:    title,
			Summary:  valueAt(row, columns, "summary"),
			Category: category,
		})
	}
	return samples, details, errCount
}

func valueAt(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}
