// Package disasm decodes EVM bytecode into an ordered instruction stream.
//
// Decoding is linear from offset 0. PUSH immediates are consumed as operand
// bytes so data embedded in PUSH instructions is never mistaken for opcodes.
package disasm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"evmnorm/internal/metadata"
)

// Instruction is a single decoded opcode. It is not modified after decoding.
type Instruction struct {
	Offset    uint32
	Op        byte
	Mnemonic  string
	Operand   []byte
	Category  Category
	Truncated bool
}

// Size is the number of code bytes the instruction occupies.
func (i Instruction) Size() int {
	return 1 + len(i.Operand)
}

// IsPush reports whether the instruction carries an immediate operand.
func (i Instruction) IsPush() bool {
	return IsPush(i.Op)
}

// String formats the instruction as a listing line.
func (i Instruction) String() string {
	if len(i.Operand) == 0 && !i.Truncated {
		return fmt.Sprintf("%04x  %s", i.Offset, i.Mnemonic)
	}
	return fmt.Sprintf("%04x  %s 0x%x", i.Offset, i.Mnemonic, i.Operand)
}

// PushValue returns the operand as a 256-bit integer. A truncated operand is
// right-padded with zeros the way the EVM reads past the end of code.
func PushValue(i Instruction) *uint256.Int {
	v := new(uint256.Int)
	if !i.IsPush() {
		return v
	}
	want := Lookup(i.Op).Immediate
	if len(i.Operand) == want {
		return v.SetBytes(i.Operand)
	}
	padded := make([]byte, want)
	copy(padded, i.Operand)
	return v.SetBytes(padded)
}

// Program is a decoded buffer.
type Program struct {
	Instructions []Instruction
	Length       int            // byte length of the decoded buffer
	Truncated    bool           // a trailing PUSH ran past the end of the buffer
	Metadata     *metadata.Span // compiler metadata trailer, nil when absent
}

// Decode walks code and returns its instructions. It never fails: undefined
// bytes decode to INVALID and a short trailing PUSH keeps the bytes available.
func Decode(code []byte) *Program {
	prog := &Program{
		Instructions: make([]Instruction, 0, len(code)/2+1),
		Length:       len(code),
	}
	for pc := 0; pc < len(code); {
		op := code[pc]
		info := Lookup(op)
		inst := Instruction{
			Offset:   uint32(pc),
			Op:       op,
			Mnemonic: info.Mnemonic,
			Category: info.Category,
		}
		if n := info.Immediate; n > 0 {
			end := pc + 1 + n
			if end > len(code) {
				end = len(code)
				inst.Truncated = true
				prog.Truncated = true
			}
			inst.Operand = append([]byte{}, code[pc+1:end]...)
		}
		prog.Instructions = append(prog.Instructions, inst)
		pc += inst.Size()
	}
	return prog
}

// Disassemble decodes code and records its metadata trailer, if any.
func Disassemble(code []byte) *Program {
	prog := Decode(code)
	prog.Metadata = metadata.Detect(code)
	return prog
}

// JumpDests returns the offsets of all JUMPDEST instructions.
func (p *Program) JumpDests() map[uint32]bool {
	dests := make(map[uint32]bool)
	for _, inst := range p.Instructions {
		if inst.Op == JUMPDEST {
			dests[inst.Offset] = true
		}
	}
	return dests
}

// String renders the program as a listing, one instruction per line.
func (p *Program) String() string {
	var sb strings.Builder
	for _, inst := range p.Instructions {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
