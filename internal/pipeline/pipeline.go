// Package pipeline runs bytecode through decoding, normalization, feature
// extraction and vectorization, and compares the results.
package pipeline

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"evmnorm/internal/analysis"
	"evmnorm/internal/cache"
	"evmnorm/internal/config"
	"evmnorm/internal/disasm"
	"evmnorm/internal/hexcode"
	"evmnorm/internal/normalize"
	"evmnorm/internal/similarity"
	"evmnorm/internal/vector"
)

// Analyzer is the capability callers depend on. *Pipeline implements it.
type Analyzer interface {
	Normalize(hex string) (*Result, error)
	Vector(hex string) (vector.Vector, error)
	Compare(hexA, hexB string) (*Comparison, error)
}

// Analysis holds every stage's output for one input.
type Analysis struct {
	Program  *normalize.Program
	Features *analysis.FeatureSet
	Vector   vector.Vector
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the normalizer steps.
func WithConfig(cfg normalize.Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithMaxInput bounds the decoded input size. n <= 0 removes the bound.
func WithMaxInput(n int) Option {
	return func(p *Pipeline) { p.maxInput = n }
}

// WithLogger sets the logger for non-fatal conditions such as truncation.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithCache memoizes analyses by content hash.
func WithCache(c *cache.Cache[*Analysis]) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithScorer replaces the cosine scorer used by Compare.
func WithScorer(s similarity.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// Pipeline is safe for concurrent use; each call works on its own input.
type Pipeline struct {
	cfg      normalize.Config
	maxInput int
	logger   *log.Logger
	cache    *cache.Cache[*Analysis]
	scorer   similarity.Scorer
}

// New returns a Pipeline with every normalizer step on, the default input
// bound and a cosine scorer.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      normalize.DefaultConfig(),
		maxInput: config.DefaultMaxInputBytes,
		logger:   log.New(io.Discard),
		scorer:   similarity.NewCosine(vector.Names()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the normalizer configuration.
func (p *Pipeline) Config() normalize.Config {
	return p.cfg
}

// Decode validates and decodes hex input.
func (p *Pipeline) Decode(hex string) ([]byte, error) {
	code, err := hexcode.Decode(hex, p.maxInput)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}

// Disassemble decodes hex into its raw instruction stream.
func (p *Pipeline) Disassemble(hex string) (*disasm.Program, error) {
	code, err := p.Decode(hex)
	if err != nil {
		return nil, err
	}
	return disasm.Disassemble(code), nil
}

// Analyze runs every stage on hex, consulting the cache when one is set.
func (p *Pipeline) Analyze(hex string) (*Analysis, error) {
	code, err := p.Decode(hex)
	if err != nil {
		return nil, err
	}
	if p.cache == nil {
		return p.analyze(code), nil
	}
	key := cache.Key(code, p.cfg.Fingerprint(), vector.SchemaVersion)
	return p.cache.GetOrCompute(key, func() (*Analysis, error) {
		return p.analyze(code), nil
	})
}

func (p *Pipeline) analyze(code []byte) *Analysis {
	prog := normalize.Normalize(disasm.Disassemble(code), p.cfg)
	if prog.Truncated {
		p.logger.Warn("Truncated PUSH operand", "length", prog.SourceLength)
	}
	if prog.Metadata != nil {
		p.logger.Debug("Metadata trailer",
			"start", prog.Metadata.Start,
			"method", prog.Metadata.Method,
			"hash", prog.Metadata.HashKind,
			"solc", prog.Metadata.Compiler,
			"stripped", prog.MetadataStripped)
	}
	fs := analysis.Extract(prog)
	return &Analysis{
		Program:  prog,
		Features: fs,
		Vector:   vector.Build(fs),
	}
}

// Normalize returns the normalized program and its features.
func (p *Pipeline) Normalize(hex string) (*Result, error) {
	a, err := p.Analyze(hex)
	if err != nil {
		return nil, err
	}
	return NewResult(a), nil
}

// Vector returns the feature vector of hex.
func (p *Pipeline) Vector(hex string) (vector.Vector, error) {
	a, err := p.Analyze(hex)
	if err != nil {
		return vector.Vector{}, err
	}
	return a.Vector, nil
}

// Compare scores the similarity of two inputs.
func (p *Pipeline) Compare(hexA, hexB string) (*Comparison, error) {
	a, err := p.Analyze(hexA)
	if err != nil {
		return nil, fmt.Errorf("first input: %w", err)
	}
	b, err := p.Analyze(hexB)
	if err != nil {
		return nil, fmt.Errorf("second input: %w", err)
	}
	return p.CompareAnalyses(a, b)
}

// CompareAnalyses scores two finished analyses.
func (p *Pipeline) CompareAnalyses(a, b *Analysis) (*Comparison, error) {
	res, err := p.scorer.Score(a.Vector.Slice(), b.Vector.Slice())
	if err != nil {
		return nil, fmt.Errorf("score vectors: %w", err)
	}
	return &Comparison{
		FinalScore:      res.Score,
		Confidence:      res.Confidence,
		DimensionScores: res.DimensionScores,
		GroupScores:     res.GroupScores,
		SequenceScore:   similarity.Sequence(SequenceTokens(a.Program), SequenceTokens(b.Program)),
		SchemaVersion:   vector.SchemaVersion,
	}, nil
}

// SequenceTokens renders each instruction as its mnemonic, suffixed with
// the constant token when one is assigned.
func SequenceTokens(prog *normalize.Program) []string {
	out := make([]string, len(prog.Instructions))
	for i, inst := range prog.Instructions {
		if inst.Token == normalize.TokenNone {
			out[i] = inst.Mnemonic
			continue
		}
		out[i] = inst.Mnemonic + "/" + inst.Token.String()
	}
	return out
}
