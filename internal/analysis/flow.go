package analysis

import (
	"evmnorm/internal/disasm"
	"evmnorm/internal/normalize"
)

func extractFrequency(prog *normalize.Program, fs *FeatureSet) {
	for _, inst := range prog.Instructions {
		fs.InstructionFrequency[inst.Mnemonic]++
	}
}

func isTerminator(op byte) bool {
	switch op {
	case disasm.STOP, disasm.RETURN, disasm.REVERT, disasm.INVALID, disasm.SELFDESTRUCT:
		return true
	}
	return !disasm.Lookup(op).Defined
}

func extractControlFlow(prog *normalize.Program, fs *FeatureSet) {
	cf := &fs.ControlFlow
	insts := prog.Instructions
	fanIn := make(map[uint64]int)

	blockStart := true
	for i, inst := range insts {
		if blockStart || inst.Op == disasm.JUMPDEST {
			cf.BasicBlocks++
		}
		blockStart = false

		switch {
		case inst.Op == disasm.JUMP || inst.Op == disasm.JUMPI:
			if inst.Op == disasm.JUMP {
				cf.Jumps++
			} else {
				cf.ConditionalJumps++
			}
			if i > 0 && insts[i-1].IsPush() {
				// fan-in keyed by the pushed value, jumpdest or not
				fanIn[disasm.PushValue(insts[i-1].Instruction).Uint64()]++
			} else {
				cf.DynamicJumps++
			}
			blockStart = true
		case inst.Op == disasm.JUMPDEST:
			cf.JumpDestsKept++
		case isTerminator(inst.Op):
			cf.Terminators++
			blockStart = true
		}
	}

	cf.StaticTargets = len(fanIn)
	for _, n := range fanIn {
		cf.MaxTargetFanIn = max(cf.MaxTargetFanIn, n)
	}
	cf.ConditionalBranchDensity = ratio(cf.ConditionalJumps, len(insts))
}

func extractDataFlow(prog *normalize.Program, fs *FeatureSet) {
	df := &fs.DataFlow
	height := 0
	for _, inst := range prog.Instructions {
		switch inst.Op {
		case disasm.SLOAD:
			df.SLoad++
		case disasm.SSTORE:
			df.SStore++
		case disasm.MLOAD:
			df.MLoad++
		case disasm.MSTORE:
			df.MStore++
		case disasm.CALL, disasm.CALLCODE, disasm.DELEGATECALL, disasm.STATICCALL:
			df.ExternalCalls++
		}
		switch inst.Op {
		case disasm.SLOAD, disasm.SSTORE, disasm.TLOAD, disasm.TSTORE:
			df.StorageTouches++
		}
		switch inst.Category {
		case disasm.Dup, disasm.Swap:
			df.StackOps++
		}
		if inst.Op == disasm.POP {
			df.StackOps++
		}

		info := disasm.Lookup(inst.Op)
		df.NetStackDelta += info.Pushes - info.Pops
		// linear walk, underflow reads from the caller's frame
		height = max(height-info.Pops, 0) + info.Pushes
		df.MaxStackHeight = max(df.MaxStackHeight, height)
	}
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
