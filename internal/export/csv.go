// Package export renders submission log entries as a spreadsheet-friendly CSV.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vivi-tora/mfc/internal/model"
)

// Columns is the fixed header row.
var Columns = []string{"Title", "JAN", "Price", "Vendor", "URL", "Status", "Message"}

var dataKeys = []string{"title", "jan", "price", "vendor", "url", "status", "message"}

// WriteCSV writes one row per entry that carries item data, in the order
// given. Every field is double-quoted so spreadsheet tools keep JAN codes
// as text.
func WriteCSV(w io.Writer, entries []model.LogEntry) error {
	buf := bufio.NewWriter(w)
	if err := writeRow(buf, Columns); err != nil {
		return err
	}

	row := make([]string, len(dataKeys))
	for _, e := range entries {
		if !HasItemData(e) {
			continue
		}
		for i, key := range dataKeys {
			v, _ := e.Data.Field(key)
			row[i] = cell(v)
		}
		if err := writeRow(buf, row); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// HasItemData reports whether an entry describes a submitted item.
func HasItemData(e model.LogEntry) bool {
	if e.Data.Kind() != model.PayloadStructured {
		return false
	}
	_, ok := e.Data.Field("jan")
	return ok
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
