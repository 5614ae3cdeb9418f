// Package normalize rewrites a decoded program into a canonical form: the
// metadata trailer is cut, unreferenced JUMPDESTs are dropped and PUSH
// operands are replaced by a small set of placeholder tokens.
package normalize

import (
	"fmt"
	"strings"

	"evmnorm/internal/disasm"
	"evmnorm/internal/hexcode"
	"evmnorm/internal/metadata"
)

// Config selects the normalization steps.
type Config struct {
	RemoveMetadata     bool `json:"remove_metadata" yaml:"remove_metadata" jsonschema:"title=Remove Metadata,description=Drop the compiler metadata trailer,default=true"`
	RemoveNops         bool `json:"remove_nops" yaml:"remove_nops" jsonschema:"title=Remove NOPs,description=Drop JUMPDESTs that no static jump targets,default=true"`
	NormalizeConstants bool `json:"normalize_constants" yaml:"normalize_constants" jsonschema:"title=Normalize Constants,description=Replace PUSH operands with placeholder tokens,default=true"`
}

// DefaultConfig enables every step.
func DefaultConfig() Config {
	return Config{RemoveMetadata: true, RemoveNops: true, NormalizeConstants: true}
}

// Fingerprint identifies the configuration in cache keys.
func (c Config) Fingerprint() string {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("m%dn%dc%d", b(c.RemoveMetadata), b(c.RemoveNops), b(c.NormalizeConstants))
}

// Instruction is a decoded instruction plus its normalization token.
type Instruction struct {
	disasm.Instruction
	Token Token
}

// Program is the normalized form of a disasm.Program.
type Program struct {
	Instructions     []Instruction
	Config           Config
	SourceLength     int            // length of the decoded buffer
	MetadataStripped int            // bytes removed with the metadata trailer
	DroppedJumpDests int            // JUMPDESTs removed as unreferenced
	Truncated        bool           // some kept instruction has a short operand
	Metadata         *metadata.Span // trailer found in the source, even if kept
}

// Normalize builds the normalized form of prog. prog is not modified.
func Normalize(prog *disasm.Program, cfg Config) *Program {
	out := &Program{
		Config:       cfg,
		SourceLength: prog.Length,
		Metadata:     prog.Metadata,
	}

	kept := make([]disasm.Instruction, 0, len(prog.Instructions))
	if cfg.RemoveMetadata && prog.Metadata != nil {
		cut := prog.Metadata.Start
		out.MetadataStripped = prog.Length - cut
		for _, inst := range prog.Instructions {
			off := int(inst.Offset)
			if off >= cut {
				break
			}
			if off+inst.Size() > cut {
				// the operand runs into the trailer
				n := cut - off - 1
				inst.Operand = inst.Operand[:n:n]
				inst.Truncated = true
			}
			kept = append(kept, inst)
		}
	} else {
		kept = append(kept, prog.Instructions...)
	}

	var live map[uint32]bool
	if cfg.RemoveNops {
		live = liveJumpDests(kept)
	}

	out.Instructions = make([]Instruction, 0, len(kept))
	for _, inst := range kept {
		if cfg.RemoveNops && inst.Op == disasm.JUMPDEST && !live[inst.Offset] {
			out.DroppedJumpDests++
			continue
		}
		ni := Instruction{Instruction: inst}
		if cfg.NormalizeConstants && inst.IsPush() {
			ni.Token = Classify(inst.Operand)
		}
		if inst.Truncated {
			out.Truncated = true
		}
		out.Instructions = append(out.Instructions, ni)
	}
	return out
}

// liveJumpDests approximates the JUMPDESTs reachable through constant jump
// targets. A JUMPDEST counts as live when a PUSH directly before a JUMP or
// JUMPI names it, or when any PUSH1..PUSH4 constant equals its offset
// (return addresses and tags pushed well ahead of the jump that uses them).
// Targets computed at run time are not seen; the widening keeps more
// JUMPDESTs rather than fewer.
func liveJumpDests(insts []disasm.Instruction) map[uint32]bool {
	dests := make(map[uint32]bool)
	for _, inst := range insts {
		if inst.Op == disasm.JUMPDEST {
			dests[inst.Offset] = true
		}
	}

	live := make(map[uint32]bool)
	for i, inst := range insts {
		if !inst.IsPush() {
			continue
		}
		direct := i+1 < len(insts) && (insts[i+1].Op == disasm.JUMP || insts[i+1].Op == disasm.JUMPI)
		if !direct && disasm.Lookup(inst.Op).Immediate > 4 {
			continue
		}
		v := disasm.PushValue(inst)
		if !v.IsUint64() || v.Uint64() > uint64(^uint32(0)) {
			continue
		}
		if target := uint32(v.Uint64()); dests[target] {
			live[target] = true
		}
	}
	return live
}

// Bytecode renders the normalized instruction stream. Tokenized operands
// are written as repeated marker bytes so the PUSH width is preserved.
func (p *Program) Bytecode() []byte {
	size := 0
	for _, inst := range p.Instructions {
		size += inst.Size()
	}
	out := make([]byte, 0, size)
	for _, inst := range p.Instructions {
		out = append(out, inst.Op)
		if inst.Token == TokenNone {
			out = append(out, inst.Operand...)
			continue
		}
		for range inst.Operand {
			out = append(out, inst.Token.Marker())
		}
	}
	return out
}

// Hex is Bytecode as lowercase hex, "" for an empty program.
func (p *Program) Hex() string {
	return hexcode.Encode(p.Bytecode())
}

// Mnemonics returns the instruction mnemonics in order.
func (p *Program) Mnemonics() []string {
	out := make([]string, len(p.Instructions))
	for i, inst := range p.Instructions {
		out[i] = inst.Mnemonic
	}
	return out
}

// String renders the program as a listing with tokens in place of
// normalized operands. Offsets are those of the source buffer.
func (p *Program) String() string {
	var sb strings.Builder
	for _, inst := range p.Instructions {
		if inst.Token == TokenNone {
			sb.WriteString(inst.Instruction.String())
		} else {
			fmt.Fprintf(&sb, "%04x  %s %s", inst.Offset, inst.Mnemonic, inst.Token)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
