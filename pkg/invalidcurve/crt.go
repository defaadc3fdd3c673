package invalidcurve

import (
	"fmt"
	"math/big"
)

// ResidueRecord states secret ≡ Residue (mod Modulus).
type ResidueRecord struct {
	Residue *big.Int
	Modulus *big.Int
}

func (r ResidueRecord) String() string {
	return fmt.Sprintf("%s mod %s", r.Residue, r.Modulus)
}

// CRT folds the congruences left to right into one congruence modulo the
// least common multiple of all moduli. Moduli need not be coprime: where
// two moduli share a factor g the residues must agree modulo g, otherwise
// an *InconsistentError is returned. An empty input gives 0 mod 1.
func CRT(records []ResidueRecord) (ResidueRecord, error) {
	acc := ResidueRecord{Residue: big.NewInt(0), Modulus: big.NewInt(1)}
	for _, r := range records {
		next, err := combine(acc, r)
		if err != nil {
			return ResidueRecord{}, err
		}
		acc = next
	}
	return acc, nil
}

// combine merges x ≡ a.Residue (mod a.Modulus) with x ≡ b.Residue
// (mod b.Modulus).
func combine(a, b ResidueRecord) (ResidueRecord, error) {
	if b.Modulus == nil || b.Modulus.Sign() <= 0 {
		return ResidueRecord{}, fmt.Errorf("invalid modulus %v", b.Modulus)
	}
	m1, m2 := a.Modulus, b.Modulus
	r1 := new(big.Int).Mod(a.Residue, m1)
	r2 := new(big.Int).Mod(b.Residue, m2)

	g := new(big.Int).GCD(nil, nil, m1, m2)
	diff := new(big.Int).Sub(r2, r1)
	if new(big.Int).Mod(diff, g).Sign() != 0 {
		return ResidueRecord{}, &InconsistentError{
			Existing: ResidueRecord{Residue: r1, Modulus: new(big.Int).Set(m1)},
			Incoming: ResidueRecord{Residue: r2, Modulus: new(big.Int).Set(m2)},
		}
	}

	// x = r1 + m1·k with k ≡ (r2-r1)/g · (m1/g)^-1 (mod m2/g)
	m1g := new(big.Int).Quo(m1, g)
	m2g := new(big.Int).Quo(m2, g)
	k := new(big.Int).Quo(diff, g)
	if m2g.Cmp(big.NewInt(1)) == 0 {
		k.SetInt64(0)
	} else {
		inv := new(big.Int).ModInverse(new(big.Int).Mod(m1g, m2g), m2g)
		k.Mul(k, inv)
		k.Mod(k, m2g)
	}

	lcm := new(big.Int).Mul(m1g, m2)
	x := new(big.Int).Mul(m1, k)
	x.Add(x, r1)
	x.Mod(x, lcm)
	return ResidueRecord{Residue: x, Modulus: lcm}, nil
}
