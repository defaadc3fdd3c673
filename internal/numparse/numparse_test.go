package numparse

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"183864092725132365247326101", "183864092725132365247326101", true},
		{"0xff", "255", true},
		{"0XFF", "255", true},
		{"-1", "-1", true},
		{" 42 ", "42", true},
		{"+7", "7", true},
		{"abc", "", false},
		{"", "", false},
		{"0x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseString(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestParse(t *testing.T) {
	v, err := Parse(json.Number("12345678901234567890123"))
	require.NoError(t, err)
	require.Equal(t, "12345678901234567890123", v.String())

	v, err = Parse(float64(17))
	require.NoError(t, err)
	require.Equal(t, int64(17), v.Int64())

	_, err = Parse(1.5)
	require.Error(t, err)

	_, err = Parse(true)
	require.Error(t, err)
}

func TestParseList(t *testing.T) {
	vs, err := ParseList("1, 0x10,-3")
	require.NoError(t, err)
	require.Len(t, vs, 3)
	require.Equal(t, int64(16), vs[1].Int64())
	require.Equal(t, int64(-3), vs[2].Int64())

	vs, err = ParseList("")
	require.NoError(t, err)
	require.Empty(t, vs)

	_, err = ParseList("1,,2")
	require.Error(t, err)
}

func TestBigInt_JSON(t *testing.T) {
	type doc struct {
		P BigInt `json:"p"`
		Q BigInt `json:"q"`
	}

	var d doc
	// bare numbers beyond float64 precision survive
	require.NoError(t, json.Unmarshal([]byte(`{"p": 183864092725132365247326101, "q": "0x10"}`), &d))
	require.Equal(t, "183864092725132365247326101", d.P.String())
	require.Equal(t, int64(16), d.Q.Int64())

	out, err := json.Marshal(doc{P: Wrap(big.NewInt(5)), Q: Wrap(big.NewInt(6))})
	require.NoError(t, err)
	require.JSONEq(t, `{"p": "5", "q": "6"}`, string(out))
}
