package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"evmnorm/internal/hexcode"
	"evmnorm/internal/metrics"
	"evmnorm/internal/pipeline"
	"evmnorm/internal/vector"
)

// stubAnalyzer returns canned results keyed by input and counts calls.
type stubAnalyzer struct {
	mu      sync.Mutex
	calls   map[string]int
	active  atomic.Int32
	peak    atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func newStub() *stubAnalyzer {
	return &stubAnalyzer{calls: make(map[string]int)}
}

func (s *stubAnalyzer) Normalize(hex string) (*pipeline.Result, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	s.calls[hex]++
	s.mu.Unlock()

	switch hex {
	case "bad":
		return nil, fmt.Errorf("decode bytecode: %w", hexcode.ErrInvalidEncoding)
	case "huge":
		return nil, fmt.Errorf("decode bytecode: %w", hexcode.ErrInputTooLarge)
	}
	return &pipeline.Result{NormalizedBytecode: hex, Instructions: make([]pipeline.Instruction, len(hex)/2)}, nil
}

func (s *stubAnalyzer) Vector(hex string) (vector.Vector, error) {
	return vector.Vector{}, nil
}

func (s *stubAnalyzer) Compare(a, b string) (*pipeline.Comparison, error) {
	if a == b {
		return &pipeline.Comparison{FinalScore: 1}, nil
	}
	return &pipeline.Comparison{FinalScore: 0.5}, nil
}

func TestRun(t *testing.T) {
	stub := newStub()
	m := metrics.NewBatchMetrics()
	r := NewRunner(stub, WithWorkers(3), WithMetrics(m))

	inputs := []Input{
		{Name: "a", Hex: "6001"},
		{Name: "b", Hex: "bad"},
		{Name: "c", Hex: "600160"},
		{Name: "d", Hex: "huge"},
	}
	outs, err := r.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outs) != len(inputs) {
		t.Fatalf("got %d outputs", len(outs))
	}
	for i, out := range outs {
		if out.Name != inputs[i].Name {
			t.Errorf("output %d is %s, want %s", i, out.Name, inputs[i].Name)
		}
	}
	if outs[0].Result == nil || outs[0].Result.NormalizedBytecode != "6001" || outs[0].Error != "" {
		t.Errorf("outs[0] = %+v", outs[0])
	}
	if outs[1].Result != nil || !strings.Contains(outs[1].Error, "invalid hex") {
		t.Errorf("outs[1] = %+v", outs[1])
	}

	if got := testutil.ToFloat64(m.InputsProcessed); got != 2 {
		t.Errorf("processed = %v, want 2", got)
	}
	for reason, want := range map[string]float64{"invalid_encoding": 1, "input_too_large": 1, "other": 0} {
		if got := testutil.ToFloat64(m.InputFailures.WithLabelValues(reason)); got != want {
			t.Errorf("failures[%s] = %v, want %v", reason, got, want)
		}
	}
	if got := testutil.ToFloat64(m.ActiveWorkers); got != 0 {
		t.Errorf("active workers = %v after Run", got)
	}
}

func TestRunReference(t *testing.T) {
	r := NewRunner(newStub(), WithReference("6001"))
	outs, err := r.Run(context.Background(), []Input{{Name: "same", Hex: "6001"}, {Name: "other", Hex: "6002"}})
	if err != nil {
		t.Fatal(err)
	}
	if outs[0].Comparison.FinalScore != 1 || outs[1].Comparison.FinalScore != 0.5 {
		t.Errorf("comparisons = %+v, %+v", outs[0].Comparison, outs[1].Comparison)
	}
}

func TestRunWorkerLimit(t *testing.T) {
	stub := newStub()
	stub.block = make(chan struct{})
	stub.started = make(chan struct{}, 16)
	r := NewRunner(stub, WithWorkers(2))

	inputs := make([]Input, 8)
	for i := range inputs {
		inputs[i] = Input{Name: fmt.Sprint(i), Hex: "00"}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background(), inputs)
	}()

	<-stub.started
	<-stub.started
	close(stub.block)
	<-done

	if p := stub.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if stub.calls["00"] != 8 {
		t.Errorf("analyzed %d inputs, want 8", stub.calls["00"])
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := newStub()
	outs, err := NewRunner(stub, WithWorkers(1)).Run(ctx, []Input{{Name: "a", Hex: "00"}, {Name: "b", Hex: "01"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(outs) != 2 {
		t.Fatalf("got %d outputs", len(outs))
	}
	for _, out := range outs {
		if out.Error == "" || out.Result != nil {
			t.Errorf("output %s ran after cancel: %+v", out.Name, out)
		}
	}
}

func TestReadInputs(t *testing.T) {
	in := `# fixtures
0x6001

token 600160
proxy	363d3d37
6001 6002
`
	got, err := ReadInputs(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []Input{
		{Name: "line-2", Hex: "0x6001"},
		{Name: "token", Hex: "600160"},
		{Name: "proxy", Hex: "363d3d37"},
		{Name: "line-6", Hex: "6001 6002"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d inputs: %+v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("input %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
