package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimable/account-registry-backend/interfaces"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	salt           BYTEA PRIMARY KEY,
	address        BYTEA NOT NULL UNIQUE,
	implementation BYTEA NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	claimed        BOOLEAN NOT NULL DEFAULT FALSE,
	owner          BYTEA,
	claimed_at     TIMESTAMPTZ
);
`

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// RecordCreated stores a creation record. Replayed events are no-ops.
func (s *PostgresStore) RecordCreated(ctx context.Context, ev interfaces.AccountCreatedEvent, at time.Time) error {
	query := `
		INSERT INTO accounts (salt, address, implementation, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (salt) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, ev.Salt.Bytes(), ev.Address.Bytes(), ev.Implementation.Bytes(), at); err != nil {
		return fmt.Errorf("failed to record account creation: %w", err)
	}
	return nil
}

// RecordClaimed marks the account at ev.Address as claimed.
func (s *PostgresStore) RecordClaimed(ctx context.Context, ev interfaces.AccountClaimedEvent, at time.Time) error {
	query := `
		UPDATE accounts SET claimed = TRUE, owner = $2, claimed_at = $3
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, ev.Address.Bytes(), ev.Owner.Bytes(), at)
	if err != nil {
		return fmt.Errorf("failed to record account claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AccountBySalt returns the record for salt.
func (s *PostgresStore) AccountBySalt(ctx context.Context, salt interfaces.Salt) (AccountRecord, error) {
	return s.scanOne(ctx, `WHERE salt = $1`, salt.Bytes())
}

// AccountByAddress returns the record for a deployed address.
func (s *PostgresStore) AccountByAddress(ctx context.Context, addr interfaces.AccountAddress) (AccountRecord, error) {
	return s.scanOne(ctx, `WHERE address = $1`, addr.Bytes())
}

func (s *PostgresStore) scanOne(ctx context.Context, where string, arg any) (AccountRecord, error) {
	query := `
		SELECT salt, address, implementation, created_at, claimed, owner, claimed_at
		FROM accounts ` + where

	var (
		rec       AccountRecord
		salt      []byte
		address   []byte
		impl      []byte
		owner     []byte
		claimedAt *time.Time
	)

	err := s.pool.QueryRow(ctx, query, arg).Scan(&salt, &address, &impl, &rec.CreatedAt, &rec.Claimed, &owner, &claimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountRecord{}, ErrNotFound
	}
	if err != nil {
		return AccountRecord{}, fmt.Errorf("failed to query account: %w", err)
	}

	return buildRecord(rec, salt, address, impl, owner, claimedAt)
}

// ListAccounts returns records ordered by creation time.
func (s *PostgresStore) ListAccounts(ctx context.Context, limit, offset int) ([]AccountRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT salt, address, implementation, created_at, claimed, owner, claimed_at
		FROM accounts
		ORDER BY created_at, address
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var records []AccountRecord
	for rows.Next() {
		var (
			rec       AccountRecord
			salt      []byte
			address   []byte
			impl      []byte
			owner     []byte
			claimedAt *time.Time
		)
		if err := rows.Scan(&salt, &address, &impl, &rec.CreatedAt, &rec.Claimed, &owner, &claimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		rec, err := buildRecord(rec, salt, address, impl, owner, claimedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func buildRecord(rec AccountRecord, salt, address, impl, owner []byte, claimedAt *time.Time) (AccountRecord, error) {
	var err error
	if rec.Salt, err = interfaces.NewSaltFromBytes(salt); err != nil {
		return AccountRecord{}, fmt.Errorf("corrupt salt column: %w", err)
	}
	if rec.Address, err = interfaces.NewAccountAddressFromBytes(address); err != nil {
		return AccountRecord{}, fmt.Errorf("corrupt address column: %w", err)
	}
	if rec.Implementation, err = interfaces.NewAccountAddressFromBytes(impl); err != nil {
		return AccountRecord{}, fmt.Errorf("corrupt implementation column: %w", err)
	}
	if len(owner) > 0 {
		if rec.Owner, err = interfaces.NewAccountAddressFromBytes(owner); err != nil {
			return AccountRecord{}, fmt.Errorf("corrupt owner column: %w", err)
		}
	}
	if claimedAt != nil {
		rec.ClaimedAt = *claimedAt
	}
	return rec, nil
}
