package services

import (
	"context"
	"fmt"
	"time"

	"sticker-sales-api/pkg/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// HistoryService records served predictions in Postgres for later analysis.
// The recorder is optional: when DATABASE_URL is not configured the service
// is simply not constructed and callers pass nil.
type HistoryService struct {
	db *sqlx.DB
}

// NewHistoryService connects to Postgres and ensures the history tables
// exist.
func NewHistoryService(databaseURL string) (*HistoryService, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("履歴DBへの接続に失敗: %w", err)
	}

	s := &HistoryService{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HistoryService) migrate() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS prediction_requests (
			id          BIGSERIAL PRIMARY KEY,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			source      TEXT NOT NULL,
			row_count   INT NOT NULL,
			duration_ms BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS prediction_values (
			request_id BIGINT NOT NULL REFERENCES prediction_requests(id),
			row_index  INT NOT NULL,
			date       TEXT NOT NULL,
			country    TEXT NOT NULL,
			store      TEXT NOT NULL,
			product    TEXT NOT NULL,
			num_sold   DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (request_id, row_index)
		);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("履歴テーブルの作成に失敗: %w", err)
	}
	return nil
}

// Record persists one served request and its predicted values. Values are
// written in a single transaction so a request never appears half-recorded.
func (s *HistoryService) Record(source string, records []models.SalesRecord, numSold []float64, duration time.Duration) error {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var requestID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO prediction_requests (source, row_count, duration_ms) VALUES ($1, $2, $3) RETURNING id`,
		source, len(records), duration.Milliseconds(),
	).Scan(&requestID)
	if err != nil {
		return fmt.Errorf("リクエスト履歴の保存に失敗: %w", err)
	}

	const insert = `
		INSERT INTO prediction_values (request_id, row_index, date, country, store, product, num_sold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, insert, requestID, i, rec.Date, rec.Country, rec.Store, rec.Product, numSold[i]); err != nil {
			return fmt.Errorf("予測値履歴の保存に失敗: %w", err)
		}
	}

	return tx.Commit()
}

// Close releases the underlying connection pool.
func (s *HistoryService) Close() error {
	return s.db.Close()
}
