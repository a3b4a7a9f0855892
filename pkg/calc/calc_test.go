package calc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/synote/pkg/calc"
)

func TestEval(t *testing.T) {
	cases := map[string]string{
		"1+2":         "3",
		"12*3":        "36",
		"7/2":         "3.5",
		"(1 + 2) * 4": "12",
		"2^10":        "1024",
		"10 - 0.25":   "9.75",
	}
	for in, want := range cases {
		got, err := calc.Eval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEval_Rejects(t *testing.T) {
	for _, in := range []string{"1/0", "2 +", "os.Exit(1)", "len(\"x\")"} {
		_, err := calc.Eval(in)
		assert.Error(t, err, in)
	}
}

func TestExpand(t *testing.T) {
	t.Run("Inlines Result", func(t *testing.T) {
		out, ok := calc.Expand("budget: 120+35=")
		assert.True(t, ok)
		assert.Equal(t, "budget: 120+35=155", out)
	})

	t.Run("Uses Last Line Only", func(t *testing.T) {
		out, ok := calc.Expand("first line 9\n3*3=")
		assert.True(t, ok)
		assert.Equal(t, "first line 9\n3*3=9", out)
	})

	t.Run("No Trigger", func(t *testing.T) {
		out, ok := calc.Expand("1+1")
		assert.False(t, ok)
		assert.Equal(t, "1+1", out)
	})

	t.Run("Failure Is Silent", func(t *testing.T) {
		out, ok := calc.Expand("oops (1+=")
		assert.False(t, ok)
		assert.Equal(t, "oops (1+=", out)
	})

	t.Run("Plain Number Is Not An Expression", func(t *testing.T) {
		_, ok := calc.Expand("answer 42=")
		assert.False(t, ok)
	})
}
