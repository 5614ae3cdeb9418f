package analysis

import (
	"github.com/cespare/xxhash/v2"

	"evmnorm/internal/disasm"
	"evmnorm/internal/normalize"
)

func extractStructural(prog *normalize.Program, fs *FeatureSet) {
	st := &fs.Structural
	insts := prog.Instructions

	pushes := 0
	for i, inst := range insts {
		st.ByteLength += inst.Size()
		if inst.Category == disasm.Push {
			pushes++
		}
		if inst.Op == disasm.PUSH4 && isDispatchEntry(insts, i) {
			st.SelectorDispatchCount++
		}
	}
	st.InstructionCount = len(insts)
	st.CodeSizeBucket = BucketFor(len(insts))
	st.PushRatio = ratio(pushes, len(insts))
}

// isDispatchEntry matches PUSH4 selector; EQ; [PUSH tag]; JUMPI starting at i.
func isDispatchEntry(insts []normalize.Instruction, i int) bool {
	if i+1 >= len(insts) || insts[i+1].Op != disasm.EQ {
		return false
	}
	for j := i + 2; j < len(insts) && j <= i+1+SelectorWindow; j++ {
		if insts[j].Op == disasm.JUMPI {
			return true
		}
	}
	return false
}

func extractConstants(prog *normalize.Program, fs *FeatureSet) {
	c := &fs.Constants
	c.Normalized = prog.Config.NormalizeConstants
	if !c.Normalized {
		c.LiteralBuckets = make([]int, LiteralBuckets)
	}
	for _, inst := range prog.Instructions {
		if !inst.IsPush() {
			continue
		}
		if !c.Normalized {
			c.LiteralBuckets[xxhash.Sum64(inst.Operand)%LiteralBuckets]++
			continue
		}
		switch inst.Token {
		case normalize.ConstSmall:
			c.Small++
		case normalize.ConstAddrLike:
			c.AddrLike++
		case normalize.ConstHashLike:
			c.HashLike++
		case normalize.ConstLarge:
			c.Large++
		}
	}
}
