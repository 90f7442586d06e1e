// Package ingest turns uploaded recipient lists into job rows.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
)

// Row is one recipient.
type Row struct {
	FirstName string
	LastName  string
}

// Blank reports whether both names are empty.
func (r Row) Blank() bool {
	return r.FirstName == "" && r.LastName == ""
}

const (
	colFirstName = "first_name"
	colLastName  = "last_name"
)

// ParseCSV reads a CSV with a header line naming first_name and last_name.
// Values are trimmed and blank rows dropped. A file without either column
// yields no rows.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	first, last := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case colFirstName:
			first = i
		case colLastName:
			last = i
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		row := Row{FirstName: field(rec, first), LastName: field(rec, last)}
		if row.Blank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Select picks total rows. When random is set and there are more rows than
// needed, a uniform sample without replacement is drawn using rng (or the
// global source when rng is nil); otherwise the first total rows are kept.
func Select(rows []Row, total int, random bool, rng *rand.Rand) []Row {
	if total <= 0 {
		return nil
	}
	if total >= len(rows) {
		return rows
	}
	if !random {
		return rows[:total]
	}

	perm := rand.Perm
	if rng != nil {
		perm = rng.Perm
	}
	out := make([]Row, 0, total)
	for _, i := range perm(len(rows))[:total] {
		out = append(out, rows[i])
	}
	return out
}
