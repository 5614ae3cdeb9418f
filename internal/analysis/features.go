package analysis

import "evmnorm/internal/disasm"

// SizeBucket is the coarse program size class, by instruction count.
type SizeBucket string

const (
	SizeNone   SizeBucket = "" // empty program
	SizeTiny   SizeBucket = "tiny"
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
)

// SizeBuckets lists the non-empty buckets from smallest to largest.
var SizeBuckets = []SizeBucket{SizeTiny, SizeSmall, SizeMedium, SizeLarge}

// BucketFor returns the size bucket of a program with n instructions.
func BucketFor(n int) SizeBucket {
	switch {
	case n == 0:
		return SizeNone
	case n < TinyInstructions:
		return SizeTiny
	case n < SmallInstructions:
		return SizeSmall
	case n < MediumInstructions:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// FeatureSet is the feature summary of one normalized program.
type FeatureSet struct {
	InstructionFrequency map[string]int `json:"instruction_frequency"`
	ControlFlow          ControlFlow    `json:"control_flow"`
	DataFlow             DataFlow       `json:"data_flow"`
	Structural           Structural     `json:"structural"`
	Constants            Constants      `json:"constants"`
}

type ControlFlow struct {
	Jumps                    int     `json:"jump"`
	ConditionalJumps         int     `json:"jumpi"`
	JumpDestsKept            int     `json:"jumpdest_kept"`
	ConditionalBranchDensity float64 `json:"conditional_branch_density"`
	DynamicJumps             int     `json:"dynamic_jumps"`     // JUMP/JUMPI without a PUSH right before
	StaticTargets            int     `json:"static_targets"`    // distinct pushed jump targets
	MaxTargetFanIn           int     `json:"max_target_fan_in"` // most static jumps sharing one target
	Terminators              int     `json:"terminators"`       // STOP, RETURN, REVERT, INVALID, SELFDESTRUCT
	BasicBlocks              int     `json:"basic_blocks"`
}

type DataFlow struct {
	SLoad          int `json:"sload"`
	SStore         int `json:"sstore"`
	MLoad          int `json:"mload"`
	MStore         int `json:"mstore"`
	StackOps       int `json:"stack_op_count"`
	StorageTouches int `json:"storage_touches"`
	NetStackDelta  int `json:"net_stack_delta"`
	MaxStackHeight int `json:"max_stack_height"`
	ExternalCalls  int `json:"external_calls"`
}

type Structural struct {
	CodeSizeBucket        SizeBucket `json:"code_size_bucket"`
	PushRatio             float64    `json:"push_ratio"`
	SelectorDispatchCount int        `json:"selector_dispatch_count"`
	InstructionCount      int        `json:"instruction_count"`
	ByteLength            int        `json:"byte_length"`
}

// Constants counts PUSH operands by token class. When the program was
// normalized without constant tokens, LiteralBuckets spreads the raw
// operand values over fixed hash buckets instead.
type Constants struct {
	Normalized     bool  `json:"normalized"`
	Small          int   `json:"const_small"`
	AddrLike       int   `json:"const_addr_like"`
	HashLike       int   `json:"const_hash_like"`
	Large          int   `json:"const_large"`
	LiteralBuckets []int `json:"literal_buckets,omitempty"`
}

// NewFeatureSet returns an empty FeatureSet with every defined mnemonic
// present in the frequency map.
func NewFeatureSet() *FeatureSet {
	freq := make(map[string]int, 150)
	for _, m := range disasm.Mnemonics() {
		freq[m] = 0
	}
	return &FeatureSet{InstructionFrequency: freq}
}
