package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/repository"
)

type commandRepository struct {
	pool *pgxpool.Pool
}

// NewCommandRepository returns a Postgres-backed command audit log.
func NewCommandRepository(pool *pgxpool.Pool) repository.CommandRepository {
	return &commandRepository{pool: pool}
}

// Record inserts the entry; replaying an already stored ID is a no-op so
// buffered entries can be drained more than once.
func (r *commandRepository) Record(ctx context.Context, record *domain.CommandRecord) error {
	if record == nil || record.Action == "" {
		return domain.ErrInvalidPayload
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO command_log (id, tab_id, action, target, outcome, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (id) DO NOTHING
	RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.TabID,
		record.Action,
		nullString(record.Target),
		record.Outcome,
		nullString(record.Error),
		nullTime(record.CreatedAt),
	).Scan(&record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r *commandRepository) List(ctx context.Context, limit int) ([]domain.CommandRecord, error) {
	const query = `
	SELECT id, tab_id, action, COALESCE(target, ''), outcome, COALESCE(error, ''), created_at
	FROM command_log
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, repository.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.CommandRecord{}
	for rows.Next() {
		var rec domain.CommandRecord
		if err := rows.Scan(&rec.ID, &rec.TabID, &rec.Action, &rec.Target, &rec.Outcome, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
