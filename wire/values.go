package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/perugo/reservation-engine/plan"
)

// The plan service is loosely typed: ids arrive as strings or numbers,
// amounts as numbers or numeric strings, flags as bools or 0/1. The types
// below accept every form seen in practice and always emit one canonical form.

var null = []byte("null")

func isNull(data []byte) bool { return bytes.Equal(bytes.TrimSpace(data), null) }

// unquote returns the string content if data is a JSON string.
func unquote(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// =============================================================================
// AMOUNT - number | numeric string | null
// =============================================================================

// Amount is a money value. Valid is false for null, empty or unparseable input.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Value: d, Valid: true} }

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	if isNull(data) {
		return nil
	}
	text, quoted := unquote(data)
	if !quoted {
		text = string(bytes.TrimSpace(data))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		// Lenient: an unreadable amount is treated as absent.
		return nil
	}
	*a = NewAmount(d)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return null, nil
	}
	return []byte(a.Value.String()), nil
}

// =============================================================================
// ID - string | number
// =============================================================================

type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*id = ""
		return nil
	}
	if s, ok := unquote(data); ok {
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// =============================================================================
// FLAG - bool | "true"/"false" | 0/1 | null, anything else is false
// =============================================================================

type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = false
	if isNull(data) {
		return nil
	}
	text, quoted := unquote(data)
	if !quoted {
		text = string(bytes.TrimSpace(data))
	}
	b, err := strconv.ParseBool(strings.TrimSpace(text))
	if err != nil {
		// Lenient: anything else reads as false.
		return nil
	}
	*f = Flag(b)
	return nil
}

// =============================================================================
// COUNT - number | numeric string | null
// =============================================================================

type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = 0
	if a.Valid {
		*c = Count(a.Value.IntPart())
	}
	return nil
}

// =============================================================================
// EXPENSES - JSON object whose key order is significant
// =============================================================================

// Expenses decodes an object like {"alojamiento": 200, "transporte": "100"}
// keeping key order. Null, unreadable and negative amounts are dropped; a
// value that is not an object leaves the breakdown empty.
type Expenses plan.Expenses

func (e *Expenses) UnmarshalJSON(data []byte) error {
	*e = nil
	if isNull(data) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// Lenient: a non-object breakdown is treated as absent.
		return nil
	}
	out := Expenses{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("gastos[%s]: %w", key, err)
		}
		var a Amount
		_ = a.UnmarshalJSON(raw)
		if !a.Valid || a.Value.IsNegative() {
			continue
		}
		out = append(out, plan.Expense{Category: key, Amount: a.Value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*e = out
	return nil
}

func (e Expenses) MarshalJSON() ([]byte, error) {
	if e == nil {
		return null, nil
	}
	var b bytes.Buffer
	b.WriteByte('{')
	for i, x := range e {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(x.Category)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.WriteString(x.Amount.String())
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
