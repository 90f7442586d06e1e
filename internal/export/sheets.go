package export

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetNamer maps a price to its worksheet name.
type SheetNamer func(price int) (string, bool)

// SheetsSink appends rows to a Google spreadsheet, one worksheet per price.
type SheetsSink struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetFor      SheetNamer
}

// NewSheetsSink creates a sink for the given spreadsheet. Options are passed
// to the Sheets client; production callers supply service-account
// credentials with option.WithCredentialsJSON.
func NewSheetsSink(ctx context.Context, spreadsheetID string, sheetFor SheetNamer, opts ...option.ClientOption) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if sheetFor == nil {
		return nil, errors.New("sheet namer is required")
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return &SheetsSink{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetFor:      sheetFor,
	}, nil
}

// Append implements Sink. Rows for prices without a worksheet are skipped.
func (s *SheetsSink) Append(ctx context.Context, row Row) error {
	name, ok := s.sheetFor(row.Price)
	if !ok {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{row.Values()}}
	_, err := s.values.Append(s.spreadsheetID, name, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", name, err)
	}
	return nil
}
