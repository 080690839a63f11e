// Package journal persists the lifecycle of edit operations so history
// survives restarts and is queryable over the API.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/vrewcraft/backend/internal/store"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Operation is one journal row: a submitted edit request and its outcome.
type Operation struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Input     string            `json:"input"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Artifacts []store.MediaFile `json:"artifacts"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, op *Operation) error
	Get(ctx context.Context, id string) (*Operation, error)
	List(ctx context.Context, limit int) ([]*Operation, error)
	MarkSucceeded(ctx context.Context, id string, artifacts []store.MediaFile) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, op *Operation) error {
	artifacts, err := marshalArtifacts(op.Artifacts)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO operations (id, kind, input, status, error, artifacts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Kind, op.Input, op.Status, op.Error, artifacts,
		op.CreatedAt.Format(time.RFC3339), op.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, input, status, error, artifacts, created_at, updated_at
		FROM operations WHERE id = ?
	`, id)
	return scanOperation(row.Scan)
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, input, status, error, artifacts, created_at, updated_at
		FROM operations ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows.Scan)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (r *SQLiteRepository) MarkSucceeded(ctx context.Context, id string, artifacts []store.MediaFile) error {
	data, err := marshalArtifacts(artifacts)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, artifacts = ?, updated_at = ? WHERE id = ?
	`, StatusSucceeded, data, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, StatusFailed, errorMsg, time.Now().Format(time.RFC3339), id)
	return err
}

func scanOperation(scan func(dest ...any) error) (*Operation, error) {
	var op Operation
	var artifacts string
	var createdAt, updatedAt string

	err := scan(&op.ID, &op.Kind, &op.Input, &op.Status, &op.Error, &artifacts, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(artifacts), &op.Artifacts); err != nil {
		return nil, err
	}
	op.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	op.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &op, nil
}

func marshalArtifacts(artifacts []store.MediaFile) (string, error) {
	if artifacts == nil {
		artifacts = []store.MediaFile{}
	}
	data, err := json.Marshal(artifacts)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
