package vector

import (
	"math"

	"evmnorm/internal/analysis"
)

const (
	// maxStack is the EVM stack limit.
	maxStack = 1024
	// instructionScaleBits saturates instruction_scale at 2^16 instructions.
	instructionScaleBits = 16
)

// Vector is a flattened FeatureSet. Every element is finite and in [0,1].
type Vector [Dimensions]float64

// Slice returns the elements as a slice sharing no memory with v.
func (v Vector) Slice() []float64 {
	out := make([]float64, Dimensions)
	copy(out, v[:])
	return out
}

// Build flattens fs. Counts are divided by the instruction count, then each
// group is scaled to the norm its weight gives it, so no group outweighs
// another however many or large its raw values are. An empty program
// yields the zero vector.
func Build(fs *analysis.FeatureSet) Vector {
	var v Vector
	n := fs.Structural.InstructionCount
	if n == 0 {
		return v
	}
	per := func(count int) float64 {
		return unit(float64(count) / float64(n))
	}

	other := 0
	for m, count := range fs.InstructionFrequency {
		if i, ok := mnemonicIndex[m]; ok {
			v[i] = per(count)
		} else {
			other += count
		}
	}
	i := len(v1Mnemonics)
	v[i] = per(other)
	i++

	cf := fs.ControlFlow
	for _, x := range []float64{
		per(cf.Jumps),
		per(cf.ConditionalJumps),
		per(cf.JumpDestsKept),
		unit(cf.ConditionalBranchDensity),
		per(cf.DynamicJumps),
		per(cf.StaticTargets),
		per(cf.MaxTargetFanIn),
		per(cf.Terminators),
		per(cf.BasicBlocks),
	} {
		v[i] = x
		i++
	}

	df := fs.DataFlow
	for _, x := range []float64{
		per(df.SLoad),
		per(df.SStore),
		per(df.MLoad),
		per(df.MStore),
		per(df.StackOps),
		per(df.StorageTouches),
		per(abs(df.NetStackDelta)),
		unit(float64(df.MaxStackHeight) / maxStack),
		per(df.ExternalCalls),
	} {
		v[i] = x
		i++
	}

	st := fs.Structural
	for _, b := range analysis.SizeBuckets {
		if st.CodeSizeBucket == b {
			v[i] = 1
		}
		i++
	}
	for _, x := range []float64{
		unit(st.PushRatio),
		per(st.SelectorDispatchCount),
		unit(math.Log2(1+float64(n)) / instructionScaleBits),
	} {
		v[i] = x
		i++
	}

	c := fs.Constants
	for _, x := range []int{c.Small, c.AddrLike, c.HashLike, c.Large} {
		v[i] = per(x)
		i++
	}
	for b := 0; b < analysis.LiteralBuckets; b++ {
		if b < len(c.LiteralBuckets) {
			v[i] = per(c.LiteralBuckets[b])
		}
		i++
	}

	for _, g := range groupSpans {
		weigh(v[g.start:g.end], g.scale)
	}
	return v
}

// weigh scales s in place to Euclidean norm scale. A zero group stays zero.
func weigh(s []float64, scale float64) {
	sum := 0.0
	for _, x := range s {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	f := scale / math.Sqrt(sum)
	for j := range s {
		s[j] = unit(s[j] * f)
	}
}

// unit clamps x to [0,1], mapping NaN to 0.
func unit(x float64) float64 {
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= 1:
		return 1
	default:
		return x
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
