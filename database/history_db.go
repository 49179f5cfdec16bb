package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/facette/natsort"

	"github.com/camden-git/acnesense/config"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// HistorySummary is one row of a user's history listing.
type HistorySummary struct {
	ID            uint      `json:"id_riwayat"`
	Title         string    `json:"judul_penyakit"`
	Overview      string    `json:"-"`
	Preview       string    `json:"overview_preview"`
	DetailCount   int       `json:"jumlah_deteksi"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	AssetStatus   *string   `json:"asset_status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatementBuilder returns a squirrel builder using the placeholder style of
// the configured driver.
func StatementBuilder(driver string) sq.StatementBuilderType {
	if driver == config.DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// ListHistorySummaries returns the user's history records with their detail
// counts and thumbnail state. limit <= 0 means no limit.
func ListHistorySummaries(ctx context.Context, db Querier, driver string, userID uint, sortOrder string, limit int) ([]HistorySummary, error) {
	if !IsValidSortOrder(sortOrder) {
		sortOrder = DefaultSortOrder
	}

	queryBuilder := StatementBuilder(driver).
		Select(
			"h.id", "h.title", "h.overview", "h.created_at",
			"a.thumbnail_path", "a.status",
			"(SELECT COUNT(*) FROM history_detail d WHERE d.history_id = h.id)",
		).
		From("history h").
		LeftJoin("history_assets a ON a.history_id = h.id").
		Where(sq.Eq{"h.user_id": userID})

	switch sortOrder {
	case SortDateAsc:
		queryBuilder = queryBuilder.OrderBy("h.created_at ASC", "h.id ASC")
	default:
		queryBuilder = queryBuilder.OrderBy("h.created_at DESC", "h.id DESC")
	}
	// natural title order is applied in memory, so the limit has to wait until then
	if limit > 0 && sortOrder != SortTitleNat {
		queryBuilder = queryBuilder.Limit(uint64(limit))
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListHistorySummaries: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history summaries for user %d: %w", userID, err)
	}
	defer rows.Close()

	summaries := []HistorySummary{}
	for rows.Next() {
		var s HistorySummary
		var thumb, status sql.NullString
		if err := rows.Scan(&s.ID, &s.Title, &s.Overview, &s.CreatedAt, &thumb, &status, &s.DetailCount); err != nil {
			return nil, fmt.Errorf("failed to scan history summary row: %w", err)
		}
		if thumb.Valid {
			s.ThumbnailPath = &thumb.String
		}
		if status.Valid {
			s.AssetStatus = &status.String
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history summary rows: %w", err)
	}

	if sortOrder == SortTitleNat {
		sort.SliceStable(summaries, func(i, j int) bool {
			return natsort.Compare(summaries[i].Title, summaries[j].Title)
		})
		if limit > 0 && len(summaries) > limit {
			summaries = summaries[:limit]
		}
	}

	return summaries, nil
}
