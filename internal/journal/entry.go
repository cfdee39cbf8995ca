package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/graphcache/internal/ir"
)

// Entry is one journaled dispatch.
type Entry struct {
	Seq         int64  `json:"seq" yaml:"seq"`
	OperationID string `json:"operation_id" yaml:"operation_id"`
	Kind        string `json:"kind" yaml:"kind"`
	IsError     bool   `json:"is_error" yaml:"is_error"`
	Payload     string `json:"payload" yaml:"payload"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	Digest      string `json:"digest" yaml:"digest"`
}

// Append records a dispatched action. Sequence numbers start at 1 and are
// dense. Error actions store "null" as their payload.
func (j *Journal) Append(ctx context.Context, operationID string, action ir.Action) (Entry, error) {
	var payload ir.Value = ir.Null{}
	var errText string
	if action.IsError {
		errText = action.Err.Error()
	} else {
		payload = action.Payload.Object()
	}
	payloadJSON, err := ir.MarshalCanonical(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("append dispatch: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("append dispatch: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM dispatches").Scan(&seq); err != nil {
		return Entry{}, fmt.Errorf("append dispatch: next seq: %w", err)
	}

	digest, err := ir.ActionDigest(seq, action)
	if err != nil {
		return Entry{}, fmt.Errorf("append dispatch: %w", err)
	}

	entry := Entry{
		Seq:         seq,
		OperationID: operationID,
		Kind:        string(action.Kind),
		IsError:     action.IsError,
		Payload:     string(payloadJSON),
		Error:       errText,
		Digest:      digest,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dispatches
		(seq, operation_id, kind, is_error, payload, error, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Seq,
		entry.OperationID,
		entry.Kind,
		entry.IsError,
		entry.Payload,
		entry.Error,
		entry.Digest,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append dispatch: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("append dispatch: commit: %w", err)
	}
	return entry, nil
}

// ReadAll returns every entry ordered by seq.
// Returns an empty slice (not nil) when the journal is empty.
func (j *Journal) ReadAll(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, `
		SELECT seq, operation_id, kind, is_error, payload, error, digest
		FROM dispatches
		ORDER BY seq ASC
	`)
}

// ReadOperation returns the entries dispatched for one operation id, ordered
// by seq.
func (j *Journal) ReadOperation(ctx context.Context, operationID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT seq, operation_id, kind, is_error, payload, error, digest
		FROM dispatches
		WHERE operation_id = ?
		ORDER BY seq ASC
	`, operationID)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	if err := rows.Scan(&e.Seq, &e.OperationID, &e.Kind, &e.IsError, &e.Payload, &e.Error, &e.Digest); err != nil {
		return Entry{}, fmt.Errorf("scan dispatch: %w", err)
	}
	return e, nil
}
