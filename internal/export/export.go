// Package export forwards successful task results to an external sink.
package export

import (
	"context"
	"time"
)

// TimestampLayout is the format of the first column of an exported row.
const TimestampLayout = "2006-01-02 15:04:05"

// Row is one successful result.
type Row struct {
	Timestamp  time.Time
	AgentID    string
	FirstName  string
	LastName   string
	ResultLink string
	Price      int // selects the destination worksheet
}

// Values returns the row as spreadsheet cells, in column order.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.Timestamp.Format(TimestampLayout),
		r.AgentID,
		r.FirstName,
		r.LastName,
		r.ResultLink,
	}
}

// Sink accepts exported rows.
type Sink interface {
	Append(ctx context.Context, row Row) error
}

// Nop discards every row.
type Nop struct{}

// Append implements Sink.
func (Nop) Append(context.Context, Row) error { return nil }
