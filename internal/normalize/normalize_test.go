package normalize

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"evmnorm/internal/disasm"
)

const (
	metaHash   = "7d1f3a9c2b4e6f8001a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f7a8"
	withBzzr0  = "608060405234801561001057600080fd" + "a165627a7a72305820" + metaHash + "0029"
	transferEv = "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

func disassemble(t *testing.T, s string) *disasm.Program {
	t.Helper()
	code, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad test hex %q: %v", s, err)
	}
	return disasm.Disassemble(code)
}

func TestNormalizeMetadata(t *testing.T) {
	prog := disassemble(t, withBzzr0)

	got := Normalize(prog, DefaultConfig())
	if strings.Contains(got.Hex(), "a165627a7a") {
		t.Fatalf("normalized output still carries metadata: %s", got.Hex())
	}
	if want := "60c160c15234801561c1c15760c180fd"; got.Hex() != want {
		t.Errorf("Hex() = %s, want %s", got.Hex(), want)
	}
	if got.MetadataStripped != 43 {
		t.Errorf("MetadataStripped = %d, want 43", got.MetadataStripped)
	}

	kept := Normalize(prog, Config{RemoveMetadata: false})
	if !strings.Contains(kept.Hex(), "a165627a7a") {
		t.Errorf("metadata should survive when RemoveMetadata is false: %s", kept.Hex())
	}
	if kept.Hex() != withBzzr0 {
		t.Errorf("with every step off the output should equal the input\n got %s\nwant %s", kept.Hex(), withBzzr0)
	}
}

func TestNormalizeLengthInvariant(t *testing.T) {
	inputs := []string{
		"",
		"60",
		withBzzr0,
		"600162" + "a165627a7a72305820" + metaHash + "0029",
		"6080604052600436106100295760003560e01c8063a9059cbb1461002e575b600080fd5b00",
	}
	configs := []Config{
		DefaultConfig(),
		{RemoveMetadata: true},
		{},
	}
	for _, in := range inputs {
		for _, cfg := range configs {
			cfg.RemoveNops = false
			prog := disassemble(t, in)
			norm := Normalize(prog, cfg)
			sum := 0
			for _, inst := range norm.Instructions {
				sum += inst.Size()
			}
			if want := prog.Length - norm.MetadataStripped; sum != want {
				t.Errorf("%s %s: sum of sizes = %d, want %d", in, cfg.Fingerprint(), sum, want)
			}
		}
	}
}

func TestNormalizeStraddlingPush(t *testing.T) {
	prog := disassemble(t, "600162"+"a165627a7a72305820"+metaHash+"0029")
	norm := Normalize(prog, DefaultConfig())
	if len(norm.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(norm.Instructions))
	}
	last := norm.Instructions[1]
	if last.Mnemonic != "PUSH3" || len(last.Operand) != 0 || !last.Truncated || !norm.Truncated {
		t.Errorf("straddling PUSH3 = %+v, want clipped and truncated", last)
	}
	if len(prog.Instructions[1].Operand) != 3 {
		t.Error("source program was modified")
	}
}

func TestNormalizeJumpDests(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		mnemonics []string
		dropped   int
	}{
		{
			name:      "direct jump target kept",
			code:      "600456005b5b00",
			mnemonics: []string{"PUSH1", "JUMP", "STOP", "JUMPDEST", "STOP"},
			dropped:   1,
		},
		{
			name:      "pushed return address kept",
			code:      "6006600050005b5b",
			mnemonics: []string{"PUSH1", "PUSH1", "POP", "STOP", "JUMPDEST"},
			dropped:   1,
		},
		{
			name:      "backward jump",
			code:      "5b600057",
			mnemonics: []string{"JUMPDEST", "PUSH1", "JUMPI"},
		},
		{
			name:      "wide push only counts before a jump",
			code:      "640000000007005b",
			mnemonics: []string{"PUSH5", "STOP"},
			dropped:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm := Normalize(disassemble(t, tt.code), DefaultConfig())
			if got := norm.Mnemonics(); !reflect.DeepEqual(got, tt.mnemonics) {
				t.Errorf("mnemonics = %v, want %v", got, tt.mnemonics)
			}
			if norm.DroppedJumpDests != tt.dropped {
				t.Errorf("dropped = %d, want %d", norm.DroppedJumpDests, tt.dropped)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		operand string
		want    Token
	}{
		{"empty", "", ConstSmall},
		{"one byte", "80", ConstSmall},
		{"two bytes", "ffff", ConstSmall},
		{"selector", "a9059cbb", ConstLarge},
		{"address", "d90e2f925da726b50c4ed8d0fb90ad053324f31b", ConstAddrLike},
		{"event topic", transferEv, ConstHashLike},
		{"eip1967 slot", "360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc", ConstHashLike},
		{"max uint", strings.Repeat("ff", 32), ConstLarge},
		{"one", strings.Repeat("00", 31) + "01", ConstLarge},
		{"half curve order", "7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0", ConstLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := hex.DecodeString(tt.operand)
			if got := Classify(b); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.operand, got, tt.want)
			}
		})
	}
}

func TestNormalizeConstants(t *testing.T) {
	a := Normalize(disassemble(t, "600160028101819055"), DefaultConfig())
	b := Normalize(disassemble(t, "600560068101819055"), DefaultConfig())
	if a.Hex() != b.Hex() {
		t.Errorf("programs differing only by literals normalize differently: %s vs %s", a.Hex(), b.Hex())
	}
	if a.Hex() != "60c160c18101819055" {
		t.Errorf("Hex() = %s", a.Hex())
	}
	for _, inst := range a.Instructions {
		if inst.IsPush() && inst.Token != ConstSmall {
			t.Errorf("%s token = %s, want CONST_SMALL", inst.Mnemonic, inst.Token)
		}
	}

	raw := Normalize(disassemble(t, "600160028101819055"), Config{})
	if raw.Hex() != "600160028101819055" {
		t.Errorf("unnormalized Hex() = %s", raw.Hex())
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	prog := disassemble(t, withBzzr0)
	a := Normalize(prog, DefaultConfig())
	b := Normalize(prog, DefaultConfig())
	if !bytes.Equal(a.Bytecode(), b.Bytecode()) || !reflect.DeepEqual(a, b) {
		t.Error("normalization is not deterministic")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	norm := Normalize(disasm.Disassemble([]byte{}), DefaultConfig())
	if norm.Hex() != "" || len(norm.Instructions) != 0 {
		t.Errorf("empty input produced %q with %d instructions", norm.Hex(), len(norm.Instructions))
	}
}

func TestConfigFingerprint(t *testing.T) {
	if got := DefaultConfig().Fingerprint(); got != "m1n1c1" {
		t.Errorf("Fingerprint() = %s", got)
	}
	if got := (Config{RemoveNops: true}).Fingerprint(); got != "m0n1c0" {
		t.Errorf("Fingerprint() = %s", got)
	}
}

func TestProgramString(t *testing.T) {
	prog := disassemble(t, "6001600055")

	got := Normalize(prog, DefaultConfig()).String()
	want := "0000  PUSH1 CONST_SMALL\n0002  PUSH1 CONST_SMALL\n0004  SSTORE\n"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	got = Normalize(prog, Config{}).String()
	if want := prog.String(); got != want {
		t.Errorf("String() with normalization off = %q, want %q", got, want)
	}
}
