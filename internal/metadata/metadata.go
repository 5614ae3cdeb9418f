// Package metadata locates the CBOR metadata trailer that Solidity-family
// compilers append after the executable part of a contract.
package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Detection methods recorded on a Span.
const (
	MethodLengthSuffix  = "length-suffix"
	MethodSignatureScan = "signature-scan"
)

// Span is the byte range [Start, End) occupied by a metadata trailer.
type Span struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Method   string `json:"method"`
	HashKind string `json:"hash_kind,omitempty"`
	Compiler string `json:"compiler,omitempty"`
}

// Len returns the number of bytes covered by the span.
func (s *Span) Len() int {
	if s == nil {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether offset lies inside the span.
func (s *Span) Contains(offset int) bool {
	return s != nil && offset >= s.Start && offset < s.End
}

// signatures are the leading bytes of known trailer maps, most specific first.
var signatures = []struct {
	prefix []byte
	kind   string
}{
	{[]byte{0xa1, 0x65, 'b', 'z', 'z', 'r', '0', 0x58, 0x20}, "bzzr0"},
	{[]byte{0xa2, 0x65, 'b', 'z', 'z', 'r', '1', 0x58, 0x20}, "bzzr1"},
	{[]byte{0xa2, 0x64, 'i', 'p', 'f', 's', 0x58, 0x22}, "ipfs"},
	{[]byte{0xa3, 0x64, 'i', 'p', 'f', 's', 0x58, 0x22}, "ipfs"},
	{[]byte{0xa1, 0x64, 's', 'o', 'l', 'c', 0x43}, ""},
}

// Detect returns the metadata span of code, or nil when none is found.
// A missing trailer is not an error.
func Detect(code []byte) *Span {
	if span := detectLengthSuffix(code); span != nil {
		return span
	}
	return detectSignature(code)
}

// detectLengthSuffix reads the trailing big-endian length L and accepts the
// L bytes before it when they decode as exactly one non-empty CBOR map.
func detectLengthSuffix(code []byte) *Span {
	n := len(code)
	if n < 3 {
		return nil
	}
	l := int(binary.BigEndian.Uint16(code[n-2:]))
	if l == 0 || l > n-2 {
		return nil
	}
	start := n - 2 - l
	var m map[any]any
	if err := cbor.Unmarshal(code[start:n-2], &m); err != nil || len(m) == 0 {
		return nil
	}
	span := &Span{Start: start, End: n, Method: MethodLengthSuffix}
	describe(span, m)
	return span
}

func detectSignature(code []byte) *Span {
	first := -1
	kind := ""
	for _, sig := range signatures {
		if i := bytes.Index(code, sig.prefix); i >= 0 && (first < 0 || i < first) {
			first, kind = i, sig.kind
		}
	}
	if first < 0 {
		return nil
	}
	span := &Span{Start: first, End: len(code), Method: MethodSignatureScan, HashKind: kind}
	var m map[any]any
	if _, err := cbor.UnmarshalFirst(code[first:], &m); err == nil {
		describe(span, m)
	}
	return span
}

func describe(span *Span, m map[any]any) {
	for k, v := range m {
		key, ok := k.(string)
		if !ok {
			continue
		}
		switch key {
		case "ipfs", "bzzr0", "bzzr1":
			span.HashKind = key
		case "solc":
			span.Compiler = compilerVersion(v)
		}
	}
}

// compilerVersion renders the solc entry: three version bytes for releases,
// a full version string for pre-releases.
func compilerVersion(v any) string {
	switch ver := v.(type) {
	case []byte:
		if len(ver) == 3 {
			return fmt.Sprintf("%d.%d.%d", ver[0], ver[1], ver[2])
		}
		return fmt.Sprintf("%x", ver)
	case string:
		return ver
	}
	return ""
}
