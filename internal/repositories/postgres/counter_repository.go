package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ppostgres "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/postgres"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

// CounterRepository serialises increments with SELECT ... FOR UPDATE inside a transaction.
type CounterRepository struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a pgx-backed counter repository.
func NewCounterRepository(pool *pgxpool.Pool) (*CounterRepository, error) {
	if pool == nil {
		return nil, errors.New("counter repository requires pgx pool")
	}
	return &CounterRepository{pool: pool, clock: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	var next int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO counters (id, updated_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, r.clock()); err != nil {
			return err
		}
		var (
			current, storedStep int64
			maxValue            *int64
		)
		if err := tx.QueryRow(ctx, `SELECT current_value, step, max_value FROM counters WHERE id = $1 FOR UPDATE`, id).
			Scan(&current, &storedStep, &maxValue); err != nil {
			return err
		}
		value, usedStep, err := repositories.NextCounterValue(id, current, repositories.CounterConfig{Step: storedStep, MaxValue: maxValue}, step)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE counters SET current_value = $2, step = $3, updated_at = $4 WHERE id = $1`,
			id, value, usedStep, r.clock()); err != nil {
			return err
		}
		next = value
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, ppostgres.WrapError("counters.next", err)
	}
	return next, nil
}

func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	sets := []string{"updated_at = EXCLUDED.updated_at"}
	args := []any{id, r.clock()}
	insertCols, insertVals := "id, updated_at", "$1, $2"
	add := func(column string, value any) {
		args = append(args, value)
		placeholder := "$" + strconv.Itoa(len(args))
		insertCols += ", " + column
		insertVals += ", " + placeholder
		sets = append(sets, column+" = EXCLUDED."+column)
	}
	if cfg.Step > 0 {
		add("step", cfg.Step)
	}
	if cfg.MaxValue != nil {
		add("max_value", *cfg.MaxValue)
	}
	if cfg.InitialValue != nil {
		add("current_value", *cfg.InitialValue)
	}

	_, err := r.pool.Exec(ctx, `INSERT INTO counters (`+insertCols+`) VALUES (`+insertVals+`)
		ON CONFLICT (id) DO UPDATE SET `+strings.Join(sets, ", "), args...)
	return ppostgres.WrapError("counters.configure", err)
}
