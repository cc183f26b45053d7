package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/pagination"
	"github.com/cloo-solutions/vocabtool/internal/service"
)

// ResolutionLogRepository stores finished resolutions for review and evaluation.
type ResolutionLogRepository struct {
	pool *pgxpool.Pool
}

func NewResolutionLogRepository(pool *pgxpool.Pool) *ResolutionLogRepository {
	return &ResolutionLogRepository{pool: pool}
}

func (r *ResolutionLogRepository) CreateResolutionLog(ctx context.Context, entry service.ResolutionLogEntry) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("marshal resolution result: %w", err)
	}

	var code *string
	if entry.Result.Coding != nil {
		code = nullableString(entry.Result.Coding.Code)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO resolution_logs (id, original_text, focus, system, query, status, code, grade, attempts, result, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID,
		entry.OriginalText,
		entry.Focus,
		entry.System,
		entry.Query,
		string(entry.Result.Status),
		code,
		nullableString(string(entry.Result.Grade)),
		entry.Result.Attempts,
		resultJSON,
		entry.DurationMs,
		entry.CreatedAt,
	)
	return err
}

// ListResolutionLogs returns up to limit entries, newest first, optionally
// filtered by status. The returned cursor is empty on the last page.
func (r *ResolutionLogRepository) ListResolutionLogs(ctx context.Context, status domain.ResolutionStatus, limit int, cursor string) ([]service.ResolutionLogEntry, string, error) {
	if limit <= 0 {
		limit = 20
	}

	c, err := pagination.DecodeKeyset(cursor)
	if err != nil {
		return nil, "", domain.ErrInvalidCursor
	}

	var where []string
	var args []any
	if status != "" {
		args = append(args, string(status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if c != nil {
		args = append(args, c.Timestamp, c.LastID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit+1)

	query := `SELECT id, original_text, focus, system, query, result, duration_ms, created_at
		 FROM resolution_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	items, err := scanResolutionLogRows(rows)
	if err != nil {
		return nil, "", err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeKeyset(last.ID, last.CreatedAt)
	}
	return items, nextCursor, nil
}

func scanResolutionLogRows(rows pgx.Rows) ([]service.ResolutionLogEntry, error) {
	items := []service.ResolutionLogEntry{}
	for rows.Next() {
		var e service.ResolutionLogEntry
		var resultJSON []byte
		if err := rows.Scan(&e.ID, &e.OriginalText, &e.Focus, &e.System, &e.Query, &resultJSON, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(resultJSON, &e.Result); err != nil {
			return nil, fmt.Errorf("decode resolution result %s: %w", e.ID, err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
