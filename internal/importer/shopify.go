// Package importer turns a Shopify product export into availability items.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/validation"
)

// Shopify export columns.
const (
	ColumnBarcode = "Variant Barcode"
	ColumnPrice   = "Variant Price"
	ColumnURL     = "URL"
	ColumnStatus  = "Status"
	ColumnType    = "Type"
	ColumnQty     = "Variant Inventory Qty"
	ColumnTitle   = "Title"
	ColumnVendor  = "Vendor"
)

var requiredColumns = []string{ColumnBarcode, ColumnPrice, ColumnURL, ColumnStatus, ColumnType, ColumnQty}

// Product types that are never listed on the vendor.
var skippedTypes = map[string]bool{
	"":          true,
	"DL":        true,
	"test":      true,
	"デジタルコンテンツ": true,
}

var urlPattern = regexp.MustCompile(`^https?://.+`)

// ErrEmpty is returned for a file without data rows.
var ErrEmpty = errors.New("csv file is empty")

// MissingColumnsError lists required headers absent from the file.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// RowError collects the problems found on one data row. Row numbers count
// the header as row 1.
type RowError struct {
	Row      int      `json:"row"`
	Problems []string `json:"problems"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(e.Problems, ", "))
}

// Result is the outcome of parsing an export.
type Result struct {
	Items   []model.Item
	Skipped int
	Errors  []RowError
}

// Valid reports whether every non-skipped row produced an item.
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

// Parse reads a Shopify export. The input may be UTF-8 with or without a
// byte order mark, or Shift_JIS as written by Excel on Japanese Windows.
func Parse(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, err := decode(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	result := &Result{}
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows++

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		if get(ColumnStatus) != "Active" || skippedTypes[strings.TrimSpace(get(ColumnType))] {
			result.Skipped++
			continue
		}

		item, problems := parseRow(get)
		if len(problems) > 0 {
			result.Errors = append(result.Errors, RowError{Row: rows + 1, Problems: problems})
			continue
		}
		result.Items = append(result.Items, item)
	}

	if rows == 0 {
		return nil, ErrEmpty
	}
	return result, nil
}

func parseRow(get func(string) string) (model.Item, []string) {
	var problems []string
	item := model.Item{
		Code:   strings.TrimSpace(get(ColumnBarcode)),
		URL:    strings.TrimSpace(get(ColumnURL)),
		Title:  get(ColumnTitle),
		Vendor: get(ColumnVendor),
	}

	switch {
	case item.Code == "":
		problems = append(problems, ColumnBarcode+" is empty")
	case !validation.IsJAN(item.Code):
		problems = append(problems, ColumnBarcode+" must be 13 digits or EZ followed by 8 digits")
	}

	rawPrice := strings.TrimSpace(get(ColumnPrice))
	if rawPrice == "" {
		problems = append(problems, ColumnPrice+" is empty")
	} else {
		price, err := strconv.ParseFloat(rawPrice, 64)
		switch {
		case err != nil || math.IsNaN(price) || price <= 0:
			problems = append(problems, ColumnPrice+" must be a positive number")
		case price != math.Trunc(price):
			problems = append(problems, ColumnPrice+" must be a whole number")
		default:
			item.Price = int64(price)
		}
	}

	switch {
	case item.URL == "":
		problems = append(problems, ColumnURL+" is empty")
	case !urlPattern.MatchString(item.URL):
		problems = append(problems, ColumnURL+" is not a valid URL")
	}

	qty := 0.0
	if rawQty := strings.TrimSpace(get(ColumnQty)); rawQty != "" {
		var err error
		qty, err = strconv.ParseFloat(rawQty, 64)
		if err != nil || math.IsNaN(qty) {
			problems = append(problems, ColumnQty+" must be a number")
		}
	}
	item.Available = qty >= 1

	return item, problems
}

func decode(raw []byte) ([]byte, error) {
	var dec transform.Transformer = unicode.UTF8BOM.NewDecoder()
	if !utf8.Valid(raw) {
		dec = japanese.ShiftJIS.NewDecoder()
	}
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return out, nil
}
