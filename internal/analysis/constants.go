// Package analysis extracts structural features from a normalized EVM
// program: opcode frequencies, control and data flow counts, dispatch
// patterns and constant classes.
package analysis

// Constants for feature extraction
const (
	// TinyInstructions is the exclusive upper bound of the tiny size bucket.
	TinyInstructions = 100

	// SmallInstructions is the exclusive upper bound of the small size bucket.
	SmallInstructions = 1000

	// MediumInstructions is the exclusive upper bound of the medium size bucket.
	MediumInstructions = 5000

	// SelectorWindow is how many instructions after the EQ of a dispatch
	// entry may precede its JUMPI (PUSH2 tag, JUMPI).
	SelectorWindow = 2

	// LiteralBuckets is the number of hash buckets literal PUSH values are
	// spread over when constants are not normalized.
	LiteralBuckets = 16
)
