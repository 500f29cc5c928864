package timevalue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForms(t *testing.T) {
	cases := map[string]int64{
		"0:00":     0,
		"5:00":     5 * 3600,
		"08:00":    8 * 3600,
		"1:05":     3900,
		"309:00":   309 * 3600,
		"2:30:15":  2*3600 + 30*60 + 15,
		"00:45:00": 45 * 60,
	}
	for in, want := range cases {
		v, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Seconds(), in)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "5", "5:", ":30", "1:60", "1:5", "1:05:60", "a:00", "-1:00", "1:00:00:00", "1.5:00"} {
		_, err := Parse(in)
		assert.True(t, errors.Is(err, ErrParse), "Parse(%q) err=%v", in, err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"0:00", "10:00", "09:59", "123:07", "1:02:03", "0:00:59"} {
		v, err := Parse(in)
		require.NoError(t, err)
		back, err := Parse(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, back, in)
	}
}

func TestFormatting(t *testing.T) {
	v := FromSeconds(2*3600 + 5*60 + 9)
	assert.Equal(t, "2:05", v.HHMM())
	assert.Equal(t, "2:05:09", v.HHMMSS())
	assert.Equal(t, "2:05:09", v.String())
	assert.Equal(t, "10:00", FromMinutes(600).String())
	assert.Equal(t, int64(125), v.Minutes())
}

func TestFromHoursTruncates(t *testing.T) {
	assert.Equal(t, int64(150), FromHours(decimal.RequireFromString("2.5")).Minutes())
	assert.Equal(t, int64(179), FromHours(decimal.RequireFromString("2.999")).Minutes())
	assert.Equal(t, int64(66), FromHours(decimal.RequireFromString("1.1")).Minutes())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("2:00")
	require.NoError(t, err)
	assert.Equal(t, int64(120), v.Minutes())

	v, err = ParseAmount("1.75")
	require.NoError(t, err)
	assert.Equal(t, int64(105), v.Minutes())

	_, err = ParseAmount("two hours")
	assert.ErrorIs(t, err, ErrParse)
	_, err = ParseAmount("-1")
	assert.ErrorIs(t, err, ErrParse)
}

func TestSubUnderflow(t *testing.T) {
	a := FromMinutes(30)
	_, err := a.Sub(FromMinutes(31))
	assert.ErrorIs(t, err, ErrUnderflow)

	r, err := FromMinutes(300).Sub(FromMinutes(120))
	require.NoError(t, err)
	assert.Equal(t, "3:00", r.String())
	assert.Equal(t, "7:00", r.Add(FromMinutes(240)).String())
}

func TestFloorPercentAndHours(t *testing.T) {
	assert.Equal(t, int64(540), FromMinutes(300*60).FloorPercent(3).Minutes())
	assert.Equal(t, int64(2), FromMinutes(119).FloorPercent(2).Minutes())
	assert.Equal(t, "1.33", FromMinutes(80).Hours().StringFixed(2))
}

func TestScanValueJSON(t *testing.T) {
	var v Value
	require.NoError(t, v.Scan("4:20"))
	assert.Equal(t, int64(260), v.Minutes())
	require.NoError(t, v.Scan([]byte("1:00:30")))
	assert.Equal(t, int64(3630), v.Seconds())
	assert.Error(t, v.Scan(42))

	dv, err := FromMinutes(75).Value()
	require.NoError(t, err)
	assert.Equal(t, "1:15", dv)

	b, err := json.Marshal(FromMinutes(75))
	require.NoError(t, err)
	assert.JSONEq(t, `"1:15"`, string(b))
	var back Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, FromMinutes(75), back)
}

func TestHugeAmountsRejected(t *testing.T) {
	for _, in := range []string{"5124095576030430:00", "1000000001:00", "99999999999999999999:00"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrParse, in)
		_, err = ParseAmount(in)
		assert.ErrorIs(t, err, ErrParse, in)
	}
	_, err := ParseAmount("5124095576030430")
	assert.ErrorIs(t, err, ErrParse)

	v, err := Parse("1000000000:00")
	require.NoError(t, err)
	assert.True(t, v.IsPositive())
	assert.Equal(t, int64(MaxHours*60), v.Minutes())
}

func TestFromHoursClamps(t *testing.T) {
	assert.Equal(t, Zero, FromHours(decimal.RequireFromString("-3")))
	assert.Equal(t, int64(MaxHours*60), FromHours(decimal.RequireFromString("1e30")).Minutes())
	assert.False(t, Zero.IsPositive())
}
