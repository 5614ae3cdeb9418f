package normalize

import (
	"math"
	"math/bits"
)

// Token is the placeholder that replaces a PUSH operand after normalization.
type Token uint8

const (
	TokenNone Token = iota
	ConstSmall
	ConstAddrLike
	ConstHashLike
	ConstLarge
)

// Tokens lists the assignable tokens in a fixed order.
var Tokens = []Token{ConstSmall, ConstAddrLike, ConstHashLike, ConstLarge}

var tokenNames = [...]string{
	TokenNone:     "",
	ConstSmall:    "CONST_SMALL",
	ConstAddrLike: "CONST_ADDR_LIKE",
	ConstHashLike: "CONST_HASH_LIKE",
	ConstLarge:    "CONST_LARGE",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return ""
}

// Marker is the byte written for each operand byte of a normalized PUSH.
func (t Token) Marker() byte {
	return 0xc0 + byte(t)
}

const (
	// minBitBalanceEntropy is the binary entropy of the 1-bit ratio a 32-byte
	// value needs to count as hash-like.
	minBitBalanceEntropy = 0.85
	// minByteEntropy is the Shannon entropy (bits, max 5 for 32 bytes) of the
	// byte histogram a 32-byte value needs to count as hash-like.
	minByteEntropy = 3.5
)

// Classify picks the token for a PUSH operand by its length and bit pattern.
func Classify(operand []byte) Token {
	switch n := len(operand); {
	case n <= 2:
		return ConstSmall
	case n == 20:
		return ConstAddrLike
	case n == 32 && highEntropy(operand):
		return ConstHashLike
	default:
		return ConstLarge
	}
}

func highEntropy(b []byte) bool {
	ones := 0
	var hist [256]int
	for _, x := range b {
		ones += bits.OnesCount8(x)
		hist[x]++
	}
	p := float64(ones) / float64(8*len(b))
	if binaryEntropy(p) < minBitBalanceEntropy {
		return false
	}
	h := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		q := float64(c) / float64(len(b))
		h -= q * math.Log2(q)
	}
	return h >= minByteEntropy
}

func binaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -(p*math.Log2(p) + (1-p)*math.Log2(1-p))
}
