package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	t.Run("parses decimal strings", func(t *testing.T) {
		a, err := FromString("10.50")
		require.NoError(t, err)
		assert.Equal(t, "10.50", a.String())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := FromString("not-a-number")
		require.Error(t, err)
	})
}

func TestArithmetic(t *testing.T) {
	t.Run("add and subtract are exact", func(t *testing.T) {
		a := MustFromString("0.1")
		b := MustFromString("0.2")

		sum := a.Add(b)
		assert.Equal(t, 0, sum.Cmp(MustFromString("0.3")), "0.1 + 0.2 must equal 0.3 exactly")

		diff := sum.Sub(b)
		assert.Equal(t, 0, diff.Cmp(a))
	})

	t.Run("division keeps precision for per-token prices", func(t *testing.T) {
		// $10 per million tokens, 10,000 tokens.
		price := MustFromString("10")
		tokens := FromInt64(10_000)
		million := FromInt64(1_000_000)

		cost := tokens.Mul(price).Div(million).Round()
		assert.Equal(t, 0, cost.Cmp(MustFromString("0.10")))
	})
}

func TestRound(t *testing.T) {
	t.Run("rounds half to even at six fractional digits", func(t *testing.T) {
		cases := []struct {
			in   string
			want string
		}{
			{"0.0000025", "0.000002"},
			{"0.0000035", "0.000004"},
			{"0.0000045", "0.000004"},
			{"1.2345675", "1.234568"},
			{"1.2345665", "1.234566"},
		}
		for _, tc := range cases {
			got := MustFromString(tc.in).Round()
			assert.Equal(t, 0, got.Cmp(MustFromString(tc.want)), "Round(%s) = %s, want %s", tc.in, got, tc.want)
		}
	})

	t.Run("leaves coarser values untouched", func(t *testing.T) {
		a := MustFromString("12.5")
		assert.Equal(t, 0, a.Round().Cmp(a))
	})
}

func TestClampZero(t *testing.T) {
	t.Run("clamps negative totals", func(t *testing.T) {
		clamped, wasClamped := MustFromString("-0.25").ClampZero()
		assert.True(t, wasClamped)
		assert.True(t, clamped.IsZero())
	})

	t.Run("passes non-negative through", func(t *testing.T) {
		a := MustFromString("3.50")
		out, wasClamped := a.ClampZero()
		assert.False(t, wasClamped)
		assert.Equal(t, 0, out.Cmp(a))
	})
}

func TestJSON(t *testing.T) {
	t.Run("marshals as a quoted decimal string", func(t *testing.T) {
		b, err := json.Marshal(MustFromString("0.25"))
		require.NoError(t, err)
		assert.Equal(t, `"0.25"`, string(b))
	})

	t.Run("unmarshals both quoted and bare numbers", func(t *testing.T) {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(`"1.50"`), &a))
		assert.Equal(t, 0, a.Cmp(MustFromString("1.50")))

		var b Amount
		require.NoError(t, json.Unmarshal([]byte(`1.5`), &b))
		assert.Equal(t, 0, b.Cmp(MustFromString("1.5")))
	})
}
