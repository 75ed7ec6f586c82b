package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the idempotency_keys table created by the schema migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectRecordForUpdate = `
SELECT key, fingerprint, status, response_status, response_headers, response_body, created_at, updated_at, expires_at
FROM idempotency_keys WHERE id = $1 FOR UPDATE`

const upsertRecord = `
INSERT INTO idempotency_keys (id, key, fingerprint, status, response_status, response_headers, response_body, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	key = EXCLUDED.key,
	fingerprint = EXCLUDED.fingerprint,
	status = EXCLUDED.status,
	response_status = EXCLUDED.response_status,
	response_headers = EXCLUDED.response_headers,
	response_body = EXCLUDED.response_body,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	expires_at = EXCLUDED.expires_at`

// Reserve implements Store. When two requests insert the same new key concurrently the primary key
// picks the winner; the loser re-reads the row and reports it as pending.
func (s *PostgresStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	var result Reservation
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, found, err := loadForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			record := newPendingRecord(key, fingerprint, now, ttlOrDefault(ttl))
			inserted, err := insertPending(ctx, tx, record)
			if err != nil {
				return err
			}
			if inserted {
				result = Reservation{State: ReservationStateNew, Record: record}
				return nil
			}
			if existing, found, err = loadForUpdate(ctx, tx, key); err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("idempotency: key vanished during reservation")
			}
		}
		if existing.expired(now) {
			record := newPendingRecord(key, fingerprint, now, ttlOrDefault(ttl))
			result = Reservation{State: ReservationStateNew, Record: record}
			return save(ctx, tx, record)
		}
		if existing.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if existing.Status == StatusCompleted {
			result = Reservation{State: ReservationStateCompleted, Record: existing}
			return nil
		}
		result = Reservation{State: ReservationStatePending, Record: existing}
		return nil
	})
	return result, err
}

// SaveResponse implements Store.
func (s *PostgresStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		record, found, err := loadForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if !found {
			record = newPendingRecord(key, fingerprint, now, ttlOrDefault(ttl))
		}
		record.Status = StatusCompleted
		record.ResponseStatus = resp.Status
		record.ResponseHeaders = storableHeaders(resp.Headers)
		record.ResponseBody = slices.Clone(resp.Body)
		record.UpdatedAt = now
		record.ExpiresAt = now.Add(ttlOrDefault(ttl))
		return save(ctx, tx, record)
	})
}

// Release implements Store.
func (s *PostgresStore) Release(ctx context.Context, key, fingerprint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE id = $1 AND fingerprint = $2`, documentID(key), fingerprint)
	return err
}

// CleanupExpired implements Store.
func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	tag, err := s.pool.Exec(ctx, `
DELETE FROM idempotency_keys WHERE id IN (
	SELECT id FROM idempotency_keys WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
)`, now.UTC(), limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func loadForUpdate(ctx context.Context, tx pgx.Tx, key string) (Record, bool, error) {
	var (
		record  Record
		status  string
		headers []byte
	)
	err := tx.QueryRow(ctx, selectRecordForUpdate, documentID(key)).Scan(
		&record.Key, &record.Fingerprint, &status, &record.ResponseStatus, &headers,
		&record.ResponseBody, &record.CreatedAt, &record.UpdatedAt, &record.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: load key: %w", err)
	}
	record.Status = Status(status)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &record.ResponseHeaders); err != nil {
			return Record{}, false, fmt.Errorf("idempotency: decode headers: %w", err)
		}
	}
	return record, true, nil
}

func insertPending(ctx context.Context, tx pgx.Tx, r Record) (bool, error) {
	tag, err := tx.Exec(ctx, `
INSERT INTO idempotency_keys (id, key, fingerprint, status, response_status, response_headers, response_body, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, 0, NULL, NULL, $5, $5, $6)
ON CONFLICT (id) DO NOTHING`,
		documentID(r.Key), r.Key, r.Fingerprint, string(r.Status), r.CreatedAt, r.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func save(ctx context.Context, tx pgx.Tx, r Record) error {
	headers, err := json.Marshal(r.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("idempotency: encode headers: %w", err)
	}
	_, err = tx.Exec(ctx, upsertRecord,
		documentID(r.Key), r.Key, r.Fingerprint, string(r.Status), r.ResponseStatus, headers,
		r.ResponseBody, r.CreatedAt, r.UpdatedAt, r.ExpiresAt,
	)
	return err
}
