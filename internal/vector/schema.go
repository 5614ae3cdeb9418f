// Package vector flattens a FeatureSet into a fixed-length float array
// whose layout is pinned by SchemaVersion.
package vector

import (
	"fmt"
	"math"
	"strconv"

	"evmnorm/internal/analysis"
)

// SchemaVersion identifies the dimension layout and weighting. Vectors
// built under different versions must not be compared.
const SchemaVersion = 2

// Dimensions is the length of every Vector of this schema version.
const Dimensions = len(v1Mnemonics) + 1 + len(controlFlowDims) + len(dataFlowDims) + 4 + len(structuralDims) + 4 + analysis.LiteralBuckets

// Dimension groups, the prefix of every dimension name.
const (
	GroupFrequency   = "freq"
	GroupControlFlow = "cf"
	GroupDataFlow    = "df"
	GroupStructural  = "st"
	GroupConstants   = "const"
)

// OtherMnemonic is the frequency bucket for mnemonics outside the v1 list.
const OtherMnemonic = "OTHER"

// groupWeights is the share of a vector's squared norm held by each group.
// With every group non-zero on both sides the cosine of two vectors is the
// weighted mean of their per-group cosines.
var groupWeights = map[string]float64{
	GroupFrequency:   0.4,
	GroupControlFlow: 0.2,
	GroupDataFlow:    0.2,
	GroupStructural:  0.1,
	GroupConstants:   0.1,
}

// groupSpan is the index range [start,end) of one group.
type groupSpan struct {
	name       string
	start, end int
	scale      float64
}

// v1Mnemonics is frozen: opcodes added after the schema was cut are
// counted in OTHER.
var v1Mnemonics = [...]string{
	"STOP", "ADD", "MUL", "SUB", "DIV", "SDIV", "MOD", "SMOD", "ADDMOD", "MULMOD", "EXP", "SIGNEXTEND",
	"LT", "GT", "SLT", "SGT", "EQ", "ISZERO", "AND", "OR", "XOR", "NOT", "BYTE", "SHL", "SHR", "SAR",
	"KECCAK256",
	"ADDRESS", "BALANCE", "ORIGIN", "CALLER", "CALLVALUE", "CALLDATALOAD", "CALLDATASIZE", "CALLDATACOPY",
	"CODESIZE", "CODECOPY", "GASPRICE", "EXTCODESIZE", "EXTCODECOPY", "RETURNDATASIZE", "RETURNDATACOPY",
	"EXTCODEHASH",
	"BLOCKHASH", "COINBASE", "TIMESTAMP", "NUMBER", "PREVRANDAO", "GASLIMIT", "CHAINID", "SELFBALANCE", "BASEFEE",
	"POP", "MLOAD", "MSTORE", "MSTORE8", "SLOAD", "SSTORE", "JUMP", "JUMPI", "PC", "MSIZE", "GAS", "JUMPDEST",
	"PUSH1", "PUSH2", "PUSH3", "PUSH4", "PUSH5", "PUSH6", "PUSH7", "PUSH8",
	"PUSH9", "PUSH10", "PUSH11", "PUSH12", "PUSH13", "PUSH14", "PUSH15", "PUSH16",
	"PUSH17", "PUSH18", "PUSH19", "PUSH20", "PUSH21", "PUSH22", "PUSH23", "PUSH24",
	"PUSH25", "PUSH26", "PUSH27", "PUSH28", "PUSH29", "PUSH30", "PUSH31", "PUSH32",
	"DUP1", "DUP2", "DUP3", "DUP4", "DUP5", "DUP6", "DUP7", "DUP8",
	"DUP9", "DUP10", "DUP11", "DUP12", "DUP13", "DUP14", "DUP15", "DUP16",
	"SWAP1", "SWAP2", "SWAP3", "SWAP4", "SWAP5", "SWAP6", "SWAP7", "SWAP8",
	"SWAP9", "SWAP10", "SWAP11", "SWAP12", "SWAP13", "SWAP14", "SWAP15", "SWAP16",
	"LOG0", "LOG1", "LOG2", "LOG3", "LOG4",
	"CREATE", "CALL", "CALLCODE", "RETURN", "DELEGATECALL", "CREATE2", "STATICCALL", "REVERT",
	"INVALID", "SELFDESTRUCT",
}

var controlFlowDims = [...]string{
	"jump", "jumpi", "jumpdest_kept", "conditional_branch_density", "dynamic_jumps",
	"static_targets", "max_target_fan_in", "terminators", "basic_blocks",
}

var dataFlowDims = [...]string{
	"sload", "sstore", "mload", "mstore", "stack_op_count", "storage_touches",
	"net_stack_delta", "max_stack_height", "external_calls",
}

// structuralDims follow the one-hot size bucket dims.
var structuralDims = [...]string{"push_ratio", "selector_dispatch", "instruction_scale"}

var (
	names         [Dimensions]string
	mnemonicIndex = make(map[string]int, len(v1Mnemonics))
	nameIndex     = make(map[string]int, Dimensions)
	groupSpans    []groupSpan
)

func init() {
	i := 0
	add := func(group, name string) {
		if n := len(groupSpans); n == 0 || groupSpans[n-1].name != group {
			groupSpans = append(groupSpans, groupSpan{name: group, start: i, scale: math.Sqrt(groupWeights[group])})
		}
		groupSpans[len(groupSpans)-1].end = i + 1
		names[i] = group + ":" + name
		nameIndex[names[i]] = i
		i++
	}
	for _, m := range v1Mnemonics {
		mnemonicIndex[m] = i
		add(GroupFrequency, m)
	}
	add(GroupFrequency, OtherMnemonic)
	for _, n := range controlFlowDims {
		add(GroupControlFlow, n)
	}
	for _, n := range dataFlowDims {
		add(GroupDataFlow, n)
	}
	for _, b := range analysis.SizeBuckets {
		add(GroupStructural, "size_"+string(b))
	}
	for _, n := range structuralDims {
		add(GroupStructural, n)
	}
	add(GroupConstants, "small")
	add(GroupConstants, "addr_like")
	add(GroupConstants, "hash_like")
	add(GroupConstants, "large")
	for b := 0; b < analysis.LiteralBuckets; b++ {
		add(GroupConstants, "literal_"+strconv.Itoa(b))
	}
	if i != Dimensions {
		panic(fmt.Sprintf("vector: schema has %d names for %d dimensions", i, Dimensions))
	}
}

// Names returns the dimension names in vector order.
func Names() []string {
	out := make([]string, Dimensions)
	copy(out, names[:])
	return out
}

// Index returns the position of the named dimension.
func Index(name string) (int, bool) {
	i, ok := nameIndex[name]
	return i, ok
}

// GroupWeight returns the squared-norm share of group, 0 for unknown groups.
func GroupWeight(group string) float64 {
	return groupWeights[group]
}
