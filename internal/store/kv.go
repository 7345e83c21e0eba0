package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/tidwall/gjson"
)

// KVRepository stores JSON values keyed by extension and key.
type KVRepository struct {
	db    *sql.DB
	qb    squirrel.StatementBuilderType
	table string
}

// Get returns the value stored under key for extension.
// Returns ErrNotFound if nothing is stored.
func (r *KVRepository) Get(ctx context.Context, extension, key string) (json.RawMessage, error) {
	if extension == "" || key == "" {
		return nil, ErrMissingKey
	}

	query, args, err := r.qb.Select("value").From(r.table).
		Where(squirrel.Eq{"extension": extension, "key": key}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var value string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(value), nil
}

// Set stores value under key for extension, replacing any previous value.
func (r *KVRepository) Set(ctx context.Context, extension, key string, value json.RawMessage) error {
	if extension == "" || key == "" {
		return ErrMissingKey
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if !gjson.ValidBytes(value) {
		return ErrInvalidValue
	}

	query, args, err := r.qb.Insert(r.table).
		Columns("extension", "key", "value", "updated_at").
		Values(extension, key, string(value), time.Now().Unix()).
		Suffix("ON CONFLICT(extension, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// Delete removes the value under key for extension.
// Returns ErrNotFound if nothing was stored.
func (r *KVRepository) Delete(ctx context.Context, extension, key string) error {
	query, args, err := r.qb.Delete(r.table).
		Where(squirrel.Eq{"extension": extension, "key": key}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys returns the keys stored for extension in ascending order.
func (r *KVRepository) Keys(ctx context.Context, extension string) ([]string, error) {
	query, args, err := r.qb.Select("key").From(r.table).
		Where(squirrel.Eq{"extension": extension}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Clear removes every value stored for extension and reports how many were
// removed.
func (r *KVRepository) Clear(ctx context.Context, extension string) (int64, error) {
	query, args, err := r.qb.Delete(r.table).
		Where(squirrel.Eq{"extension": extension}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
