// Package hexcode turns user supplied hex strings into raw bytecode buffers.
package hexcode

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrInvalidEncoding is returned for odd-length input or non-hex characters.
	ErrInvalidEncoding = errors.New("invalid hex encoding")
	// ErrInputTooLarge is returned when the decoded size would exceed the caller's cap.
	ErrInputTooLarge = errors.New("input too large")
)

// Clean removes whitespace and a single 0x/0X prefix.
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return s
}

// Decode converts s to bytes. An empty string (after cleaning) yields an
// empty, non-nil buffer. maxBytes <= 0 disables the size cap.
func Decode(s string, maxBytes int) ([]byte, error) {
	s = Clean(s)
	if maxBytes > 0 && (len(s)+1)/2 > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInputTooLarge, (len(s)+1)/2, maxBytes)
	}
	if s == "" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	return b, nil
}

// Encode renders b as lowercase hex without a prefix.
func Encode(b []byte) string {
	return common.Bytes2Hex(b)
}
