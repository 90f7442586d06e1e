package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

type fieldRow struct {
	Field string `db:"field"`
	Value string `db:"value"`
}

// Put upserts every field of the record in a single statement.
func (s *Store) Put(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, k := range names {
		values[i] = fields[k]
	}

	query := `
		INSERT INTO kv_records (key, field, value)
		SELECT $1, f, v FROM unnest($2::text[], $3::text[]) AS t(f, v)
		ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, pq.Array(names), pq.Array(values)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// GetAll returns every field stored for key.
func (s *Store) GetAll(ctx context.Context, key string) (map[string]string, error) {
	var rows []fieldRow
	err := s.db.SelectContext(ctx, &rows, "SELECT field, value FROM kv_records WHERE key = $1", key)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Field] = r.Value
	}
	return out, nil
}

// ScanKeys returns distinct record keys starting with prefix.
func (s *Store) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		`SELECT DISTINCT key FROM kv_records WHERE key LIKE $1 ESCAPE '\'`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return keys, nil
}

// escapeLike quotes LIKE wildcards so prefix is matched literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
