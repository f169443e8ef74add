package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var jsonNull = []byte("null")

// idValue is an identifier that the backend may send as a number or a string.
type idValue struct {
	value string
	set   bool
	zero  bool
}

func (v *idValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*v = idValue{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = idValue{value: s, set: true, zero: s == ""}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*v = idValue{value: n.String(), set: true, zero: f == 0}
	return nil
}

// relation returns nil for an absent, null, empty or zero reference.
func (v idValue) relation() *string {
	if !v.set || v.zero {
		return nil
	}
	s := v.value
	return &s
}

// amountValue accepts JSON numbers and decimal strings; null means zero.
type amountValue struct {
	decimal.Decimal
}

func (a *amountValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		a.Decimal = decimal.Zero
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	a.Decimal = d
	return nil
}

// countValue accepts integral numbers, floats (truncated) and numeric strings.
type countValue int64

func (c *countValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*c = 0
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*c = countValue(n)
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", raw, err)
	}
	*c = countValue(d.IntPart())
	return nil
}

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	dateLayout,
}

// ParseDate parses a strict YYYY-MM-DD calendar date. Empty input yields nil.
func ParseDate(value string) (*civil.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &d, nil
}

// ParseTimestamp strips a single trailing "Z" and parses the rest as an
// ISO-8601 date-time. Values without an offset are read as UTC.
// Other UTC notations are left to the layouts as-is.
func ParseTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	trimmed := strings.TrimSuffix(value, "Z")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", value)
}

func formatDate(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02T15:04:05.999999999")
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
