package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"evmnorm/internal/cache"
	"evmnorm/internal/hexcode"
	"evmnorm/internal/normalize"
	"evmnorm/internal/similarity"
	"evmnorm/internal/vector"
)

const (
	b1         = "600160028101819055"
	b2         = "600560068101819055"
	withMeta   = "0x608060405234801561001057600080fd" + "a165627a7a72305820" + "7d1f3a9c2b4e6f8001a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f7a8" + "0029"
	dispatcher = "6080604052600436106100235760003560e01c8063a9059cbb1461001e575b600080fd5b00"
)

func TestNormalizeDeterministic(t *testing.T) {
	p := New()
	for _, in := range []string{"", "60", b1, withMeta, dispatcher} {
		r1, err := p.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", in, err)
		}
		r2, _ := p.Normalize(in)
		if !reflect.DeepEqual(r1, r2) {
			t.Errorf("Normalize(%q) differs between calls", in)
		}
		v1, _ := p.Vector(in)
		v2, _ := p.Vector(in)
		if v1 != v2 {
			t.Errorf("Vector(%q) differs between calls", in)
		}
	}
}

func TestNormalizeTruncated(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithLogger(log.New(&buf)))

	r, err := p.Normalize("60")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !r.Truncated || len(r.Instructions) != 1 {
		t.Fatalf("got %+v", r)
	}
	inst := r.Instructions[0]
	if inst.Mnemonic != "PUSH1" || !inst.Truncated || inst.Operand != "" {
		t.Errorf("instruction = %+v", inst)
	}
	if !strings.Contains(buf.String(), "Truncated") {
		t.Errorf("truncation not logged: %q", buf.String())
	}
}

func TestNormalizeMetadata(t *testing.T) {
	r, err := New().Normalize(withMeta)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(r.NormalizedBytecode, "a165627a7a") {
		t.Errorf("metadata survived: %s", r.NormalizedBytecode)
	}
	if r.Metadata == nil || r.Metadata.HashKind != "bzzr0" || r.MetadataStripped != 43 {
		t.Errorf("Metadata = %+v, stripped %d", r.Metadata, r.MetadataStripped)
	}

	kept, _ := New(WithConfig(normalize.Config{})).Normalize(withMeta)
	if !strings.Contains(kept.NormalizedBytecode, "a165627a7a") {
		t.Error("metadata removed with RemoveMetadata off")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	p := New()
	r, err := p.Normalize("")
	if err != nil {
		t.Fatal(err)
	}
	if r.NormalizedBytecode != "" || r.Instructions == nil || len(r.Instructions) != 0 {
		t.Errorf("got %+v", r)
	}
	out, _ := json.Marshal(r)
	if !bytes.Contains(out, []byte(`"instructions":[]`)) {
		t.Errorf("empty instructions not rendered as []: %s", out)
	}

	v, err := p.Vector("0x")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != vector.Dimensions || v != (vector.Vector{}) {
		t.Error("empty input should give the zero vector")
	}
	for _, x := range v {
		if math.IsNaN(x) {
			t.Fatal("NaN in empty vector")
		}
	}
}

func TestNormalizeJSON(t *testing.T) {
	r, err := New().Normalize(dispatcher)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"normalized_bytecode":"60c160c1`,
		`"opcode":"0x63","mnemonic":"PUSH4","token":"CONST_LARGE","category":"Push"`,
		`"selector_dispatch_count":1`,
		`"conditional_branch_density"`,
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("JSON missing %s", want)
		}
	}

	raw, _ := New(WithConfig(normalize.Config{})).Normalize(dispatcher)
	if got := raw.Instructions[13]; got.Operand != "0xa9059cbb" || got.Token != "" {
		t.Errorf("raw PUSH4 = %+v", got)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		p    *Pipeline
		in   string
		want error
	}{
		{"odd length", New(), "0x600", hexcode.ErrInvalidEncoding},
		{"bad char", New(), "60zz", hexcode.ErrInvalidEncoding},
		{"too large", New(WithMaxInput(4)), "6001600160", hexcode.ErrInputTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.p.Normalize(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Normalize() error = %v, want %v", err, tt.want)
			}
			if _, err := tt.p.Compare(b1, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Compare() error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := New(WithMaxInput(0)).Decode(strings.Repeat("00", 2<<20)); err != nil {
		t.Errorf("unbounded pipeline rejected input: %v", err)
	}
}

func TestCompareConstants(t *testing.T) {
	norm, err := New().Compare(b1, b2)
	if err != nil {
		t.Fatal(err)
	}
	if norm.FinalScore <= 0.8 {
		t.Errorf("normalized score = %v, want > 0.8", norm.FinalScore)
	}
	if norm.SequenceScore != 1 {
		t.Errorf("normalized sequence score = %v, want 1", norm.SequenceScore)
	}

	raw, err := New(WithConfig(normalize.Config{RemoveMetadata: true, RemoveNops: true})).Compare(b1, b2)
	if err != nil {
		t.Fatal(err)
	}
	if raw.FinalScore > norm.FinalScore-0.05 {
		t.Errorf("raw score %v not measurably below normalized %v", raw.FinalScore, norm.FinalScore)
	}
}

func TestCompareUnrelated(t *testing.T) {
	// every pair shares a size bucket but no instruction 3-gram
	tests := []struct {
		name string
		a, b string
	}{
		{name: "constructor prologue", a: b1, b: "6080604052348015600f57600080fd5b50"},
		{name: "caller return", a: b1, b: "3360005260206000f3"},
		{name: "block info", a: b1, b: "4243014401600055"},
		{name: "dispatcher", a: b1, b: dispatcher},
		{name: "disjoint opcodes", a: strings.Repeat("6001600201", 170), b: strings.Repeat("3380509033", 150)},
	}

	p := New()
	literalOnly, err := p.Compare(b1, b2)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := p.Compare(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if c.SequenceScore != 0 {
				t.Errorf("sequence score = %v, want 0", c.SequenceScore)
			}
			if c.FinalScore >= 0.8 {
				t.Errorf("score = %v, want below 0.8", c.FinalScore)
			}
			if c.FinalScore > literalOnly.FinalScore-0.2 {
				t.Errorf("score = %v, want at least 0.2 below the literal-only pair (%v)", c.FinalScore, literalOnly.FinalScore)
			}
			for dim, share := range c.DimensionScores {
				if share > 0.3 {
					t.Errorf("%s alone contributes %v of %v", dim, share, c.FinalScore)
				}
			}
		})
	}
}

func TestCompareSymmetric(t *testing.T) {
	p := New()
	inputs := []string{"", "60", b1, b2, withMeta, dispatcher}
	for _, a := range inputs {
		for _, b := range inputs {
			ab, err := p.Compare(a, b)
			if err != nil {
				t.Fatal(err)
			}
			ba, _ := p.Compare(b, a)
			if ab.FinalScore != ba.FinalScore || ab.Confidence != ba.Confidence || ab.SequenceScore != ba.SequenceScore {
				t.Errorf("Compare(%q, %q) not symmetric: %+v vs %+v", a, b, ab, ba)
			}
		}
	}
}

func TestCompareEmptyConfidence(t *testing.T) {
	c, err := New().Compare("", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.FinalScore != 1 || c.Confidence != 0 {
		t.Errorf("empty pair = %+v", c)
	}
	full, _ := New().Compare(dispatcher, dispatcher)
	if full.Confidence <= c.Confidence {
		t.Errorf("confidence %v for real code not above empty %v", full.Confidence, c.Confidence)
	}
}

type stubScorer struct {
	res   similarity.Result
	err   error
	calls int
}

func (s *stubScorer) Score(a, b []float64) (similarity.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestCompareScorer(t *testing.T) {
	stub := &stubScorer{res: similarity.Result{Score: 0.25, Confidence: 0.5}}
	c, err := New(WithScorer(stub)).Compare(b1, b2)
	if err != nil {
		t.Fatal(err)
	}
	if stub.calls != 1 || c.FinalScore != 0.25 || c.Confidence != 0.5 {
		t.Errorf("stub not used: calls=%d comparison=%+v", stub.calls, c)
	}

	stub.err = similarity.ErrDimensionMismatch
	if _, err := New(WithScorer(stub)).Compare(b1, b2); !errors.Is(err, similarity.ErrDimensionMismatch) {
		t.Errorf("Compare() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestAnalyzeCache(t *testing.T) {
	c, err := cache.New[*Analysis](16)
	if err != nil {
		t.Fatal(err)
	}
	p := New(WithCache(c))
	for _, in := range []string{b1, "0x" + b1, " 60 01 60 02 81 01 81 90 55 "} {
		if _, err := p.Normalize(in); err != nil {
			t.Fatal(err)
		}
	}
	if s := c.Stats(); s.Computes != 1 || s.Hits != 2 {
		t.Errorf("Stats() = %+v, want one compute and two hits", s)
	}

	// a different configuration must not reuse the entry
	if _, err := New(WithCache(c), WithConfig(normalize.Config{})).Normalize(b1); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestNormalizeLargeInput(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2500; i++ {
		sb.WriteString("5b6001600201") // JUMPDEST PUSH1 PUSH1 ADD
	}
	code := sb.String()

	start := time.Now()
	r, err := New().Normalize(code)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(r.Instructions) + r.DroppedJumpDests; n != 10000 {
		t.Errorf("decoded %d instructions, want 10000", n)
	}
	if elapsed > time.Second {
		t.Errorf("normalizing 10000 instructions took %v", elapsed)
	}
}

func TestAnalyzerInterface(t *testing.T) {
	var a Analyzer = New()
	if _, err := a.Vector(b1); err != nil {
		t.Fatal(err)
	}
}
