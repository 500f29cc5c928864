// Package timevalue implements the time-denominated currency: a
// non-negative quantity of elapsed time written as H:MM or H:MM:SS.
package timevalue

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrParse is returned for malformed time strings and non-numeric amounts.
	ErrParse = errors.New("invalid time value")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("time value underflow")
)

// MaxHours is the largest hour count Parse and ParseAmount accept.
const MaxHours = 1_000_000_000

var (
	sixty    = decimal.NewFromInt(60)
	maxHours = decimal.NewFromInt(MaxHours)
)

// Value is an immutable amount of time with second precision.
// The zero value is 0:00.
type Value struct {
	secs int64
}

// Zero is 0:00.
var Zero = Value{}

func FromMinutes(n int64) Value { return Value{secs: n * 60} }

func FromSeconds(n int64) Value { return Value{secs: n} }

// FromHours converts fractional hours to a Value, truncating at the minute
// boundary (2.999h -> 2:59). h is clamped to [0, MaxHours].
func FromHours(h decimal.Decimal) Value {
	if h.IsNegative() {
		return Zero
	}
	if h.GreaterThan(maxHours) {
		h = maxHours
	}
	return FromMinutes(h.Mul(sixty).Truncate(0).IntPart())
}

// Parse reads "H:MM" or "H:MM:SS". Hours are unbounded and may be unpadded;
// minutes and seconds must be two digits below 60.
func Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Zero, fmt.Errorf("%w: %q", ErrParse, s)
	}
	h, err := parseField(parts[0], -1)
	if err != nil || h > MaxHours {
		return Zero, fmt.Errorf("%w: %q", ErrParse, s)
	}
	m, err := parseField(parts[1], 60)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrParse, s)
	}
	var sec int64
	if len(parts) == 3 {
		if sec, err = parseField(parts[2], 60); err != nil {
			return Zero, fmt.Errorf("%w: %q", ErrParse, s)
		}
	}
	return Value{secs: h*3600 + m*60 + sec}, nil
}

func parseField(f string, limit int64) (int64, error) {
	if f == "" {
		return 0, ErrParse
	}
	if limit > 0 && len(f) != 2 {
		return 0, ErrParse
	}
	for _, c := range f {
		if c < '0' || c > '9' {
			return 0, ErrParse
		}
	}
	n, err := strconv.ParseInt(f, 10, 64)
	if err != nil {
		return 0, ErrParse
	}
	if limit > 0 && n >= limit {
		return 0, ErrParse
	}
	return n, nil
}

// ParseAmount accepts user input: "H:MM", "H:MM:SS" or decimal hours ("2.5").
// Negative decimal input is rejected with ErrParse.
func ParseAmount(raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ":") {
		return Parse(raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrParse, raw)
	}
	if d.IsNegative() {
		return Zero, fmt.Errorf("%w: negative amount %q", ErrParse, raw)
	}
	if d.GreaterThan(maxHours) {
		return Zero, fmt.Errorf("%w: more than %d hours %q", ErrParse, MaxHours, raw)
	}
	return FromHours(d), nil
}

// Minutes returns whole minutes, dropping any seconds.
func (v Value) Minutes() int64 { return v.secs / 60 }

func (v Value) Seconds() int64 { return v.secs }

func (v Value) IsZero() bool { return v.secs == 0 }

// IsPositive reports v > 0:00.
func (v Value) IsPositive() bool { return v.secs > 0 }

// HHMM formats as H:MM; seconds are dropped.
func (v Value) HHMM() string {
	m := v.Minutes()
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

// HHMMSS formats as H:MM:SS.
func (v Value) HHMMSS() string {
	return fmt.Sprintf("%d:%02d:%02d", v.secs/3600, (v.secs%3600)/60, v.secs%60)
}

// String is the canonical form: H:MM, or H:MM:SS when a seconds part exists.
func (v Value) String() string {
	if v.secs%60 != 0 {
		return v.HHMMSS()
	}
	return v.HHMM()
}

// Hours is the display value in hours rounded to 2 decimal places.
func (v Value) Hours() decimal.Decimal {
	return decimal.NewFromInt(v.secs).Div(decimal.NewFromInt(3600)).Round(2)
}

func (v Value) Add(o Value) Value { return Value{secs: v.secs + o.secs} }

// Sub returns v-o or ErrUnderflow. Callers check affordability first.
func (v Value) Sub(o Value) (Value, error) {
	if o.secs > v.secs {
		return Zero, fmt.Errorf("%w: %s - %s", ErrUnderflow, v, o)
	}
	return Value{secs: v.secs - o.secs}, nil
}

func (v Value) Less(o Value) bool { return v.secs < o.secs }

func (v Value) Cmp(o Value) int {
	switch {
	case v.secs < o.secs:
		return -1
	case v.secs > o.secs:
		return 1
	}
	return 0
}

// FloorPercent returns floor(minutes*pct/100) as a Value.
func (v Value) FloorPercent(pct int64) Value {
	return FromMinutes(v.Minutes() * pct / 100)
}

// Scan implements sql.Scanner for text columns holding H:MM / H:MM:SS.
func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Zero
		return nil
	case string:
		p, err := Parse(s)
		if err != nil {
			return err
		}
		*v = p
		return nil
	case []byte:
		return v.Scan(string(s))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrParse, src)
	}
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) { return v.String(), nil }

func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	p, err := Parse(s)
	if err != nil {
		return err
	}
	*v = p
	return nil
}
