package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ovpnadmin/internal/shared"
)

type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, username, passwordHash string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*UserRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT username, password_hash, created_at FROM users WHERE username = ?`, username,
	)

	var rec UserRecord
	var created int64
	if err := row.Scan(&rec.Username, &rec.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	rec.CreatedAt = time.Unix(created, 0)
	return &rec, nil
}

func (s *SQLiteStore) AddAudit(ctx context.Context, e shared.AuditEntry) (shared.AuditEntry, error) {
	e = stampAudit(e)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor, action, target, result, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Action, e.Target, e.Result, e.Detail, e.CreatedAt,
	)
	return e, err
}

func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]shared.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, actor, action, target, result, detail, created_at
		 FROM audit_log
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []shared.AuditEntry{}
	for rows.Next() {
		var e shared.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &e.Result, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
