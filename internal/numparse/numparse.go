// Package numparse reads big integers from flags, JSON documents and HTTP
// payloads. Values are decimal unless prefixed with 0x.
package numparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Parse converts a decoded JSON value or Go integer into a big.Int.
func Parse(val interface{}) (*big.Int, error) {
	switch v := val.(type) {
	case string:
		return ParseString(v)

	case json.Number:
		return ParseString(string(v))

	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("invalid number format: %v is not an integer", v)
		}
		return big.NewInt(int64(v)), nil

	case int64:
		return big.NewInt(v), nil

	case int:
		return big.NewInt(int64(v)), nil

	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("invalid number format: nil")
		}
		return new(big.Int).Set(v), nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", val)
	}
}

// ParseString parses a decimal or 0x-prefixed hexadecimal integer with an
// optional sign.
func ParseString(s string) (*big.Int, error) {
	str := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(str, "-") {
		neg = true
		str = str[1:]
	} else {
		str = strings.TrimPrefix(str, "+")
	}

	base := 10
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		base = 16
		str = str[2:]
	}

	z := new(big.Int)
	if str == "" {
		return nil, fmt.Errorf("invalid number format: %q", s)
	}
	if _, ok := z.SetString(str, base); !ok {
		return nil, fmt.Errorf("invalid number format: %q", s)
	}
	if neg {
		z.Neg(z)
	}
	return z, nil
}

// ParseList parses a comma separated list of integers. Empty input gives
// an empty list.
func ParseList(s string) ([]*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]*big.Int, 0, len(parts))
	for _, part := range parts {
		v, err := ParseString(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// BigInt is a big.Int that marshals to a JSON decimal string and accepts
// strings or bare numbers when unmarshalled. Bare numbers are read with
// full precision.
type BigInt struct {
	*big.Int
}

// Wrap returns v as a BigInt without copying.
func Wrap(v *big.Int) BigInt {
	return BigInt{Int: v}
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Int.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		b.Int = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	b.Int = v
	return nil
}
