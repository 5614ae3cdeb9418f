package analysis

import "evmnorm/internal/normalize"

// Extractor fills its part of a FeatureSet from a normalized program.
type Extractor interface {
	// Extract reads prog and writes into fs. It never fails; an empty
	// program leaves the zero values in place.
	Extract(prog *normalize.Program, fs *FeatureSet)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(prog *normalize.Program, fs *FeatureSet)

// Extract calls f(prog, fs).
func (f ExtractorFunc) Extract(prog *normalize.Program, fs *FeatureSet) {
	f(prog, fs)
}

// ExtractorChain runs multiple extractors in sequence
type ExtractorChain struct {
	extractors []Extractor
}

// NewExtractorChain creates a new extractor chain
func NewExtractorChain(extractors ...Extractor) *ExtractorChain {
	return &ExtractorChain{
		extractors: extractors,
	}
}

// Extract runs all extractors in sequence over a fresh FeatureSet.
func (ec *ExtractorChain) Extract(prog *normalize.Program) *FeatureSet {
	fs := NewFeatureSet()
	for _, extractor := range ec.extractors {
		extractor.Extract(prog, fs)
	}
	return fs
}

// DefaultChain returns the extractors behind Extract, in order.
func DefaultChain() *ExtractorChain {
	return NewExtractorChain(
		ExtractorFunc(extractFrequency),
		ExtractorFunc(extractControlFlow),
		ExtractorFunc(extractDataFlow),
		ExtractorFunc(extractStructural),
		ExtractorFunc(extractConstants),
	)
}

var defaultChain = DefaultChain()

// Extract computes every feature group of prog.
func Extract(prog *normalize.Program) *FeatureSet {
	return defaultChain.Extract(prog)
}
