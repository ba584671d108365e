// Package persistence implements the durable event store (spec component
// G's consumer, an external collaborator per spec.md §1): a Postgres-backed
// applier for sink.ChannelPersistSink that appends
// NewOrder/OrderDeleted/TradeExecuted events to durable tables. Replay from this store is explicitly out of scope
// (spec.md Non-goals) — this package only ever appends.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"clobd/internal/model"
)

// Store is a Postgres-backed append log for persistence events. It
// implements sink.PersistSink's applier shape: Apply is meant to be
// passed to sink.NewChannelPersistSink, keeping the buffering/backpressure
// policy in the sink package and the storage concern here.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres at dsn and verifies connectivity. Callers
// must call Close when done.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables this store writes to, if they do not
// already exist. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS orders (
	order_id   BIGINT PRIMARY KEY,
	user_id    BIGINT NOT NULL,
	price      BIGINT NOT NULL,
	quantity   BIGINT NOT NULL,
	side       SMALLINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS order_cancellations (
	order_id    BIGINT PRIMARY KEY,
	canceled_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS trades (
	trade_id        UUID PRIMARY KEY,
	price           BIGINT NOT NULL,
	quantity        BIGINT NOT NULL,
	maker_order_id  BIGINT NOT NULL,
	taker_order_id  BIGINT NOT NULL,
	ts_unix_ms      BIGINT NOT NULL
);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Apply persists one PersistEvent. Intended as the applier callback for
// sink.NewChannelPersistSink; a write failure is logged and swallowed —
// this store is best-effort from the matcher's point of view (spec.md §4.6).
func (s *Store) Apply(evt model.PersistEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var err error
	switch evt.Kind {
	case model.PersistNewOrder:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO orders (order_id, user_id, price, quantity, side) VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (order_id) DO NOTHING`,
			evt.Order.OrderID, evt.Order.UserID, evt.Order.Price, evt.Order.Quantity, evt.Order.Side)
	case model.PersistOrderDeleted:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO order_cancellations (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`,
			evt.OrderID)
	case model.PersistTradeExecuted:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO trades (trade_id, price, quantity, maker_order_id, taker_order_id, ts_unix_ms)
			 VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (trade_id) DO NOTHING`,
			tradeIDString(evt.TradeID), evt.Price, evt.Quantity, evt.MakerOrderID, evt.TakerOrderID, evt.TimestampUnix)
	}

	if err != nil {
		log.Error().Err(err).Uint8("kind", uint8(evt.Kind)).Msg("persistence: write failed, in-memory state remains authoritative")
	}
}

func tradeIDString(id [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", id[0:4], id[4:6], id[6:8], id[8:10], id[10:16])
}
