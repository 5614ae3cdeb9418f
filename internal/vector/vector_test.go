package vector

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"evmnorm/internal/analysis"
	"evmnorm/internal/disasm"
	"evmnorm/internal/normalize"
)

func build(t *testing.T, code string, cfg normalize.Config) Vector {
	t.Helper()
	b, err := hex.DecodeString(code)
	if err != nil {
		t.Fatalf("bad test hex %q: %v", code, err)
	}
	return Build(analysis.Extract(normalize.Normalize(disasm.Disassemble(b), cfg)))
}

func TestSchema(t *testing.T) {
	got := Names()
	if len(got) != Dimensions {
		t.Fatalf("Names() has %d entries, want %d", len(got), Dimensions)
	}
	if Dimensions != 189 {
		t.Errorf("Dimensions = %d; changing the layout needs a new SchemaVersion", Dimensions)
	}
	seen := make(map[string]bool)
	for i, n := range got {
		if seen[n] {
			t.Errorf("duplicate dimension %q", n)
		}
		seen[n] = true
		if j, ok := Index(n); !ok || j != i {
			t.Errorf("Index(%q) = %d, %v; want %d", n, j, ok, i)
		}
		if !strings.Contains(n, ":") {
			t.Errorf("dimension %q has no group prefix", n)
		}
	}
	got[0] = "mutated"
	if Names()[0] != "freq:STOP" {
		t.Error("Names() exposes internal state")
	}
}

func TestBuildEmpty(t *testing.T) {
	v := build(t, "", normalize.DefaultConfig())
	if v != (Vector{}) {
		t.Errorf("empty program produced a non-zero vector")
	}
	if len(v.Slice()) != Dimensions {
		t.Errorf("Slice() has %d entries", len(v.Slice()))
	}
}

func TestBuildFinite(t *testing.T) {
	inputs := []string{
		"60",
		"600160028101819055",
		"6080604052600436106100235760003560e01c8063a9059cbb1461001e575b600080fd5b00",
		"5f5f01",
		"fefefe",
		"8080808080808080808080808080808080808080",
	}
	for _, in := range inputs {
		for _, cfg := range []normalize.Config{normalize.DefaultConfig(), {}} {
			v := build(t, in, cfg)
			for i, x := range v {
				if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || x > 1 {
					t.Errorf("%s: %s = %v", in, Names()[i], x)
				}
			}
		}
	}
}

func TestBuildOther(t *testing.T) {
	v := build(t, "5f5f01", normalize.DefaultConfig())
	other, _ := Index("freq:OTHER")
	add, _ := Index("freq:ADD")
	if v[add] == 0 || math.Abs(v[other]-2*v[add]) > 1e-12 {
		t.Errorf("freq:OTHER = %v, freq:ADD = %v; want OTHER twice ADD", v[other], v[add])
	}
	if _, ok := Index("freq:PUSH0"); ok {
		t.Error("PUSH0 has its own dimension")
	}
}

func TestBuildSizeOneHot(t *testing.T) {
	v := build(t, "600160028101819055", normalize.DefaultConfig())
	tiny, _ := Index("st:size_tiny")
	for _, b := range analysis.SizeBuckets {
		i, ok := Index("st:size_" + string(b))
		if !ok {
			t.Fatalf("missing bucket dimension %s", b)
		}
		if b != analysis.SizeTiny && v[i] != 0 {
			t.Errorf("st:size_%s = %v, want 0", b, v[i])
		}
	}
	if v[tiny] == 0 || v[tiny] > math.Sqrt(GroupWeight(GroupStructural))+1e-12 {
		t.Errorf("st:size_tiny = %v, want within the structural group norm", v[tiny])
	}
}

// groupNorm2 is the squared norm of the dimensions of group in v.
func groupNorm2(v Vector, group string) float64 {
	sum := 0.0
	for i, n := range Names() {
		if strings.HasPrefix(n, group+":") {
			sum += v[i] * v[i]
		}
	}
	return sum
}

func TestBuildGroupWeights(t *testing.T) {
	groups := []string{GroupFrequency, GroupControlFlow, GroupDataFlow, GroupStructural, GroupConstants}
	total := 0.0
	for _, g := range groups {
		total += GroupWeight(g)
	}
	if math.Abs(total-1) > 1e-12 {
		t.Errorf("group weights sum to %v, want 1", total)
	}

	tests := []struct {
		name string
		code string
		cfg  normalize.Config
	}{
		{name: "dispatcher", code: "6080604052600436106100235760003560e01c8063a9059cbb1461001e575b600080fd5b00", cfg: normalize.DefaultConfig()},
		{name: "raw constants", code: "600160028101819055", cfg: normalize.Config{}},
		{name: "long loop body", code: strings.Repeat("6001600201", 300), cfg: normalize.DefaultConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := build(t, tt.code, tt.cfg)
			for _, g := range groups {
				if got := groupNorm2(v, g); math.Abs(got-GroupWeight(g)) > 1e-9 {
					t.Errorf("group %s holds %v of the norm, want %v", g, got, GroupWeight(g))
				}
			}
		})
	}
}

func TestBuildConstants(t *testing.T) {
	a := build(t, "600160028101819055", normalize.DefaultConfig())
	b := build(t, "600560068101819055", normalize.DefaultConfig())
	if a != b {
		t.Error("literal-only difference changed the normalized vector")
	}

	rawA := build(t, "600160028101819055", normalize.Config{})
	rawB := build(t, "600560068101819055", normalize.Config{})
	if rawA == rawB {
		t.Error("literal buckets did not separate raw constants")
	}
	small, _ := Index("const:small")
	if want := math.Sqrt(GroupWeight(GroupConstants)); rawA[small] != 0 || math.Abs(a[small]-want) > 1e-12 {
		t.Errorf("const:small raw=%v normalized=%v, want 0 and %v", rawA[small], a[small], want)
	}
}
