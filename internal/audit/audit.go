// Package audit keeps a non-authoritative sqlite log of every RFQ outcome
// the Quoter reaches, for operator troubleshooting only — nothing in the
// core pipeline reads it back. Grounded on the teacher's db/store.go:
// goose-embedded migrations over mattn/go-sqlite3, the same stack, applied
// to a single append-only table instead of sqlc-generated user/wallet
// queries.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/liquorice-gateway/gateway/internal/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store appends one row per terminal RFQ outcome: (rfq_id, chain_id,
// status, quote_token_amount, ts).
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) a sqlite database at path and applies any
// pending goose migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running audit migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// RecordOutcome appends one row for an RFQ that has reached a terminal
// outcome. quoteTokenAmount is the decimal-string raw amount quoted, or ""
// for outcomes that never produced a quote.
func (s *Store) RecordOutcome(ctx context.Context, rfqID string, chainID int, status metrics.Outcome, quoteTokenAmount string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO rfq_outcomes (rfq_id, chain_id, status, quote_token_amount) VALUES (?, ?, ?, ?)`,
		rfqID, chainID, string(status), quoteTokenAmount,
	)
	if err != nil {
		return fmt.Errorf("recording rfq outcome: %w", err)
	}
	return nil
}

// Outcome is one logged row, returned by ListRecent for operator tooling.
type Outcome struct {
	RFQID            string
	ChainID          int
	Status           string
	QuoteTokenAmount string
}

// ListRecent returns the most recent n outcomes, newest first.
func (s *Store) ListRecent(ctx context.Context, n int) ([]Outcome, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT rfq_id, chain_id, status, quote_token_amount FROM rfq_outcomes ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rfq outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.RFQID, &o.ChainID, &o.Status, &o.QuoteTokenAmount); err != nil {
			return nil, fmt.Errorf("scanning rfq outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
