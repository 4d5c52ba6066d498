package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

type newsRepo struct {
	r  repo[models.News]
	tx *gorm.DB
}

func newNewsRepo(tx *gorm.DB) *newsRepo {
	return &newsRepo{r: repo[models.News]{tx: tx, entity: "news"}, tx: tx}
}

func (n *newsRepo) Add(ctx context.Context, row *models.News) error { return n.r.add(ctx, row) }
func (n *newsRepo) AddBulk(ctx context.Context, rows []*models.News) error {
	return n.r.addBulk(ctx, rows)
}
func (n *newsRepo) GetOne(ctx context.Context, id int64) (*models.News, error) {
	return n.r.getOne(ctx, id)
}
func (n *newsRepo) GetOneOrNone(ctx context.Context, id int64) (*models.News, error) {
	return n.r.getOneOrNone(ctx, id)
}
func (n *newsRepo) GetAllFiltered(ctx context.Context, filter interfaces.Filter) ([]*models.News, error) {
	return n.r.getAllFiltered(ctx, filter)
}
func (n *newsRepo) Edit(ctx context.Context, id int64, patch map[string]any, ensure bool) error {
	return n.r.edit(ctx, id, patch, ensure)
}
func (n *newsRepo) Delete(ctx context.Context, id int64, ensure bool) error {
	return n.r.delete(ctx, id, ensure)
}
func (n *newsRepo) Count(ctx context.Context, filter interfaces.Filter) (int64, error) {
	return n.r.count(ctx, filter)
}

// GetRecent returns news for a channel, optionally after a watermark id,
// with limit/offset pagination.
// ascending=true gives the fan-out planner's "ordered by id ascending" walk;
// ascending=false gives the read-path default of "ordered by published desc".
func (n *newsRepo) GetRecent(ctx context.Context, channelID int64, gt int64, limit, offset int, ascending bool) ([]*models.News, error) {
	q := n.tx.WithContext(ctx).Where("channel_id = ? AND id > ?", channelID, gt)
	if ascending {
		q = q.Order("id ASC")
	} else {
		q = q.Order("published DESC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var rows []*models.News
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("news get_recent: %w", err)
	}
	return rows, nil
}

// GetHashesByHashes returns the subset of hashes already present in the store.
func (n *newsRepo) GetHashesByHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	var existing []string
	if err := n.tx.WithContext(ctx).
		Model(&models.News{}).
		Where("content_hash IN ?", hashes).
		Pluck("content_hash", &existing).Error; err != nil {
		return nil, fmt.Errorf("news get_hashes_by_hashes: %w", err)
	}
	out := make(map[string]bool, len(existing))
	for _, h := range existing {
		out[h] = true
	}
	return out, nil
}

// GetUncategorized returns every row with category IS NULL — equality
// filters can't express NULL via GetAllFiltered's "col = ?" builder, so
// this is its own query ("load all News rows with category
// IS NULL").
func (n *newsRepo) GetUncategorized(ctx context.Context) ([]*models.News, error) {
	var rows []*models.News
	if err := n.tx.WithContext(ctx).Where("category IS NULL").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("news get_uncategorized: %w", err)
	}
	return rows, nil
}

// AddBulkUpsert inserts rows, ignoring conflicts on content_hash —
// conflict-ignore, never conflict-update, so concurrent writers cannot
// clobber each other — then re-queries on the batch's content hashes and
// returns every stored row carrying one of them. A row whose hash was
// already stored before the insert (for example by a concurrent writer)
// is returned as well; the result does not separate new rows from
// pre-existing ones.
func (n *newsRepo) AddBulkUpsert(ctx context.Context, rows []*models.News) ([]*models.News, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	err := n.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_hash"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("news add_bulk_upsert: %w", err)
	}

	hashes := make([]string, len(rows))
	for i, r := range rows {
		hashes[i] = r.ContentHash
	}
	var inserted []*models.News
	if err := n.tx.WithContext(ctx).Where("content_hash IN ?", hashes).Find(&inserted).Error; err != nil {
		return nil, fmt.Errorf("news add_bulk_upsert re-query: %w", err)
	}
	return inserted, nil
}

// SearchWithPagination runs a case-insensitive substring
// match over title|summary|source when query is given, plus set-membership
// filters on categories/channel_ids.
func (n *newsRepo) SearchWithPagination(ctx context.Context, limit, offset int, query string, categories []string, channelIDs []int64, recentFirst bool) (int64, []*models.News, error) {
	q := n.tx.WithContext(ctx).Model(&models.News{})

	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(source) LIKE ?",
			like, like, like,
		)
	}
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	if len(channelIDs) > 0 {
		q = q.Where("channel_id IN ?", channelIDs)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("news search count: %w", err)
	}

	if recentFirst {
		q = q.Order("published DESC")
	} else {
		q = q.Order("published ASC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var rows []*models.News
	if err := q.Find(&rows).Error; err != nil {
		return 0, nil, fmt.Errorf("news search: %w", err)
	}
	return total, rows, nil
}

var _ interfaces.NewsRepo = (*newsRepo)(nil)
