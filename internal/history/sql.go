package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
)

// SQLStorage persists history orders and deals in Postgres/TimescaleDB,
// grounded on the teacher's internal/database.Pools connection-pool
// wrapper. Offered as the alternative, durable backend the spec's
// non-goals leave room for beyond the in-memory replica (storage of the
// sync core's own bookkeeping, not of broker-side order matching).
type SQLStorage struct {
	listener.Base

	pool      *pgxpool.Pool
	accountID string
}

// NewSQLStorage wraps an existing pool. Initialize creates the
// history_orders and deals tables if they do not already exist.
func NewSQLStorage(pool *pgxpool.Pool, accountID string) *SQLStorage {
	return &SQLStorage{pool: pool, accountID: accountID}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS history_orders (
	account_id  TEXT NOT NULL,
	instance_id INT NOT NULL,
	id          TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	type        TEXT NOT NULL,
	state       TEXT NOT NULL,
	done_time   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, id)
);
CREATE TABLE IF NOT EXISTS deals (
	account_id  TEXT NOT NULL,
	instance_id INT NOT NULL,
	id          TEXT NOT NULL,
	order_id    TEXT NOT NULL,
	position_id TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	type        TEXT NOT NULL,
	volume      DOUBLE PRECISION NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	deal_time   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, id)
);
`

func (s *SQLStorage) Initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("history: create schema: %w", err)
	}
	return nil
}

func (s *SQLStorage) LastHistoryOrderTime(ctx context.Context, instanceIndex int) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(done_time), 'epoch') FROM history_orders WHERE account_id=$1 AND instance_id=$2`,
		s.accountID, instanceIndex,
	).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: last history order time: %w", err)
	}
	return t, nil
}

func (s *SQLStorage) LastDealTime(ctx context.Context, instanceIndex int) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(deal_time), 'epoch') FROM deals WHERE account_id=$1 AND instance_id=$2`,
		s.accountID, instanceIndex,
	).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: last deal time: %w", err)
	}
	return t, nil
}

func (s *SQLStorage) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM history_orders WHERE account_id=$1`, s.accountID); err != nil {
		return fmt.Errorf("history: clear history orders: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM deals WHERE account_id=$1`, s.accountID); err != nil {
		return fmt.Errorf("history: clear deals: %w", err)
	}
	return nil
}

func (s *SQLStorage) OnHistoryOrderAdded(instanceIndex int, order model.HistoryOrder) {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO history_orders (account_id, instance_id, id, symbol, type, state, done_time)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (account_id, id) DO UPDATE SET state=EXCLUDED.state, done_time=EXCLUDED.done_time`,
		s.accountID, instanceIndex, order.ID, order.Symbol, order.Type, order.State, order.DoneTime,
	)
	_ = err // history ingestion is best-effort; the next sync catches up via lastHistoryOrderTime
}

func (s *SQLStorage) OnDealAdded(instanceIndex int, deal model.Deal) {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO deals (account_id, instance_id, id, order_id, position_id, symbol, type, volume, price, deal_time)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (account_id, id) DO NOTHING`,
		s.accountID, instanceIndex, deal.ID, deal.OrderID, deal.PositionID, deal.Symbol, deal.Type, deal.Volume, deal.Price, deal.Time,
	)
	_ = err
}

var _ Storage = (*SQLStorage)(nil)
