package invalidcurve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/invalid-curve/pkg/order"
)

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := LookupPreset(name)
			require.NoError(t, err)
			require.Equal(t, name, p.Name)
			require.NoError(t, p.Field.Validate())
			require.NoError(t, validateB(&p.Field, p.B))

			if p.N == nil {
				require.Nil(t, p.Calibration())
				return
			}
			require.True(t, p.Field.IsOnCurve(p.G, p.B))
			z, err := p.Field.ScalarMult(p.G, p.N)
			require.NoError(t, err)
			require.True(t, z.IsInfinity())
			require.NotNil(t, p.Calibration())
		})
	}
}

func TestPresets_Wei25519Constants(t *testing.T) {
	p := Wei25519()
	require.Equal(t, "2aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa984914a144", p.Field.A.Text(16))
	require.Equal(t, "7b425ed097b425ed097b425ed097b425ed097b425ed097b4260b5e9c7710c864", p.B.Text(16))
}

func TestPresets_Secp256k1Order(t *testing.T) {
	p := Secp256k1()
	n, err := order.JZero{}.Order(context.Background(), &p.Field, p.B)
	require.NoError(t, err)
	require.Zero(t, n.Cmp(p.N))
}

func TestLookupPreset(t *testing.T) {
	p, err := LookupPreset("P256")
	require.NoError(t, err)
	require.Equal(t, "p256", p.Name)

	_, err = LookupPreset("curve448")
	require.Error(t, err)
}

func TestPresets_SmallFieldWithinMestre(t *testing.T) {
	p := SmallField()
	require.Equal(t, 88, p.Field.P.BitLen())
	require.LessOrEqual(t, p.Field.P.BitLen(), order.DefaultMestreBits)
}
