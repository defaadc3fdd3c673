// Package drbg provides a deterministic, seedable random stream. A seed
// string is expanded with BLAKE2b-256 into a ChaCha20 key and the
// keystream is served through io.Reader, so runs driven by the same seed
// draw the same curves and points.
//
// A Reader is not safe for concurrent use; workers derive their own
// stream with Fork.
package drbg

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// Reader is a ChaCha20 keystream keyed by a hashed seed.
type Reader struct {
	seed   string
	cipher *chacha20.Cipher
}

// New returns a stream derived from seed.
func New(seed string) *Reader {
	key := blake2b.Sum256([]byte(seed))
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &Reader{seed: seed, cipher: c}
}

// NewRandom returns a stream seeded from crypto/rand. The seed is
// retrievable through Seed so a run can be reproduced.
func NewRandom() (*Reader, error) {
	var buf [16]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return nil, err
	}
	return New(hex.EncodeToString(buf[:])), nil
}

// Seed returns the seed string the stream was created with.
func (r *Reader) Seed() string {
	return r.seed
}

// Read fills p with keystream bytes. It never fails.
func (r *Reader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Fork returns an independent stream labelled by label. Forking does not
// advance r.
func (r *Reader) Fork(label string) *Reader {
	return New(r.seed + "/" + label)
}

// Int returns a uniform value in [0, max).
func (r *Reader) Int(max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, errors.New("drbg: max must be positive")
	}
	bits := max.BitLen()
	buf := make([]byte, (bits+7)/8)
	n := new(big.Int)
	for {
		r.Read(buf)
		if extra := len(buf)*8 - bits; extra > 0 {
			buf[0] &= 0xff >> uint(extra)
		}
		n.SetBytes(buf)
		if n.Cmp(max) < 0 {
			return n, nil
		}
	}
}
