package invalidcurve

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRT_RoundTrip(t *testing.T) {
	secret := big.NewInt(987654321987)
	moduli := []int64{7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43}

	var records []ResidueRecord
	prod := big.NewInt(1)
	for _, m := range moduli {
		mm := big.NewInt(m)
		records = append(records, ResidueRecord{Residue: new(big.Int).Mod(secret, mm), Modulus: mm})
		prod.Mul(prod, mm)
	}

	got, err := CRT(records)
	require.NoError(t, err)
	require.Zero(t, got.Modulus.Cmp(prod))
	require.Zero(t, got.Residue.Cmp(new(big.Int).Mod(secret, prod)), "got %s", got)
}

func TestCRT_Empty(t *testing.T) {
	got, err := CRT(nil)
	require.NoError(t, err)
	require.Equal(t, "0 mod 1", got.String())
}

func TestCRT_OverlapAgrees(t *testing.T) {
	// 100 mod 12 and 100 mod 18 share 6
	got, err := CRT([]ResidueRecord{
		{Residue: big.NewInt(4), Modulus: big.NewInt(12)},
		{Residue: big.NewInt(10), Modulus: big.NewInt(18)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(36), got.Modulus.Int64())
	require.Equal(t, int64(100%36), got.Residue.Int64())

	// the same prime power twice
	got, err = CRT([]ResidueRecord{
		{Residue: big.NewInt(30), Modulus: big.NewInt(49)},
		{Residue: big.NewInt(2), Modulus: big.NewInt(7)},
		{Residue: big.NewInt(5), Modulus: big.NewInt(13)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(637), got.Modulus.Int64())
	require.Equal(t, int64(30), new(big.Int).Mod(got.Residue, big.NewInt(49)).Int64())
	require.Equal(t, int64(5), new(big.Int).Mod(got.Residue, big.NewInt(13)).Int64())
}

func TestCRT_Conflict(t *testing.T) {
	_, err := CRT([]ResidueRecord{
		{Residue: big.NewInt(3), Modulus: big.NewInt(5)},
		{Residue: big.NewInt(4), Modulus: big.NewInt(12)},
		{Residue: big.NewInt(11), Modulus: big.NewInt(18)},
	})
	require.ErrorIs(t, err, ErrInconsistent)

	var ie *InconsistentError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, int64(18), ie.Incoming.Modulus.Int64())
	require.Equal(t, int64(60), ie.Existing.Modulus.Int64())
}

func TestCRT_InvalidModulus(t *testing.T) {
	_, err := CRT([]ResidueRecord{{Residue: big.NewInt(1), Modulus: big.NewInt(0)}})
	require.Error(t, err)
}
