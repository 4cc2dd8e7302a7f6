package agetest

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/wbrc/gf65536"
)

var field = gf65536.Default

// share is one point of every per-word polynomial: the common x coordinate
// and one y value per 16-bit word of the secret.
type share struct {
	X uint16
	Y []uint16
}

func (s share) bytes() []byte {
	b := make([]byte, 2+2*len(s.Y))
	binary.BigEndian.PutUint16(b, s.X)
	for i, y := range s.Y {
		binary.BigEndian.PutUint16(b[2+2*i:], y)
	}
	return b
}

func parseShare(b []byte) (share, error) {
	if len(b) < 4 || len(b)%2 != 0 {
		return share{}, errors.New("malformed share")
	}
	s := share{X: binary.BigEndian.Uint16(b), Y: make([]uint16, len(b)/2-1)}
	for i := range s.Y {
		s.Y[i] = binary.BigEndian.Uint16(b[2+2*i:])
	}
	if s.X == 0 {
		return share{}, errors.New("share at x=0")
	}
	return s, nil
}

// splitKey splits key into n shares over GF(2^16), any threshold of which
// recover it.
func splitKey(random io.Reader, threshold, n int, key []byte) ([]share, error) {
	switch {
	case threshold < 1:
		return nil, errors.New("threshold must be greater than 0")
	case threshold > n:
		return nil, errors.New("threshold must be less than or equal to n")
	case len(key) == 0 || len(key)%2 != 0:
		return nil, errors.New("key must be a non-empty multiple of 2 bytes")
	}

	words := make([]uint16, len(key)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(key[2*i:])
	}

	xs, err := distinctPoints(random, n)
	if err != nil {
		return nil, err
	}
	shares := make([]share, n)
	for i := range shares {
		shares[i] = share{X: xs[i], Y: make([]uint16, len(words))}
	}

	coeff := make([]uint16, threshold)
	for w, secret := range words {
		coeff[0] = secret
		if err := binary.Read(random, binary.BigEndian, coeff[1:]); err != nil {
			return nil, err
		}
		for i := range shares {
			shares[i].Y[w] = horner(coeff, shares[i].X)
		}
	}
	return shares, nil
}

// combineKey interpolates the shares at zero. Shares with a repeated x are
// counted once.
func combineKey(shares []share) ([]byte, error) {
	uniq := make([]share, 0, len(shares))
	seen := make(map[uint16]bool, len(shares))
	for _, s := range shares {
		if seen[s.X] {
			continue
		}
		seen[s.X] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return nil, errors.New("no shares")
	}
	width := len(uniq[0].Y)
	for _, s := range uniq[1:] {
		if len(s.Y) != width {
			return nil, errors.New("inconsistent share length")
		}
	}

	basis := lagrangeAtZero(uniq)
	key := make([]byte, 2*width)
	for w := 0; w < width; w++ {
		var acc uint16
		for i, s := range uniq {
			acc = field.Add(acc, field.Mul(basis[i], s.Y[w]))
		}
		binary.BigEndian.PutUint16(key[2*w:], acc)
	}
	return key, nil
}

// lagrangeAtZero returns the basis values l_i(0) for the shares' x
// coordinates. Subtraction is addition in characteristic 2.
func lagrangeAtZero(shares []share) []uint16 {
	basis := make([]uint16, len(shares))
	for i, si := range shares {
		num, den := uint16(1), uint16(1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			num = field.Mul(num, sj.X)
			den = field.Mul(den, field.Add(sj.X, si.X))
		}
		basis[i] = field.Mul(num, field.Inv(den))
	}
	return basis
}

// horner evaluates the polynomial with coefficients coeff (lowest first) at x.
func horner(coeff []uint16, x uint16) uint16 {
	var r uint16
	for i := len(coeff) - 1; i >= 0; i-- {
		r = field.Add(field.Mul(r, x), coeff[i])
	}
	return r
}

// distinctPoints draws n distinct nonzero field elements.
func distinctPoints(random io.Reader, n int) ([]uint16, error) {
	xs := make([]uint16, 0, n)
	seen := make(map[uint16]bool, n)
	var x uint16
	for len(xs) < n {
		if err := binary.Read(random, binary.BigEndian, &x); err != nil {
			return nil, err
		}
		if x == 0 || seen[x] {
			continue
		}
		seen[x] = true
		xs = append(xs, x)
	}
	return xs, nil
}
