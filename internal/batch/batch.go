// Package batch analyzes many independent inputs on a bounded worker pool.
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"evmnorm/internal/hexcode"
	"evmnorm/internal/metrics"
	"evmnorm/internal/pipeline"
)

// maxLine bounds one input line; deployed code is at most 24 KiB but
// initcode and test fixtures run larger.
const maxLine = 8 << 20

// Input is one named bytecode sample.
type Input struct {
	Name string `json:"name"`
	Hex  string `json:"-"`
}

// Output is the outcome for one Input. Exactly one of Result and Error is set.
type Output struct {
	Name       string               `json:"name"`
	Result     *pipeline.Result     `json:"result,omitempty"`
	Comparison *pipeline.Comparison `json:"comparison,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the pool size. n <= 0 uses one worker per CPU.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n <= 0 {
			n = runtime.NumCPU()
		}
		r.workers = n
	}
}

// WithMetrics records every analysis in m.
func WithMetrics(m metrics.BatchMetrics) Option {
	return func(r *Runner) { r.metrics = &m }
}

// WithLogger sets the logger for per-input failures.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithReference compares every input against hex as well.
func WithReference(hex string) Option {
	return func(r *Runner) { r.reference = hex }
}

// Runner fans inputs out to an Analyzer.
type Runner struct {
	analyzer  pipeline.Analyzer
	workers   int
	metrics   *metrics.BatchMetrics
	logger    *log.Logger
	reference string
}

// NewRunner returns a Runner over a.
func NewRunner(a pipeline.Analyzer, opts ...Option) *Runner {
	r := &Runner{
		analyzer: a,
		workers:  runtime.NumCPU(),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run analyzes inputs and returns one Output per input, in input order.
// A failing input is reported in its Output and does not stop the others.
// When ctx is cancelled no further inputs start; those get ctx's error
// and Run returns it.
func (r *Runner) Run(ctx context.Context, inputs []Input) ([]Output, error) {
	outputs := make([]Output, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	scheduled := 0
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outputs[i] = r.process(in)
			return nil
		})
		scheduled++
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i := scheduled; i < len(inputs); i++ {
			outputs[i] = Output{Name: inputs[i].Name, Error: err.Error()}
		}
		return outputs, fmt.Errorf("batch interrupted after %d of %d inputs: %w", scheduled, len(inputs), err)
	}
	return outputs, nil
}

func (r *Runner) process(in Input) Output {
	if r.metrics != nil {
		r.metrics.ActiveWorkers.Inc()
		defer r.metrics.ActiveWorkers.Dec()
	}

	out := Output{Name: in.Name}
	start := time.Now()
	res, err := r.analyzer.Normalize(in.Hex)
	if err != nil {
		r.fail(&out, err)
		return out
	}
	if r.metrics != nil {
		r.metrics.Observe(time.Since(start), len(res.Instructions), res.Truncated, res.MetadataStripped, res.DroppedJumpDests)
	}
	out.Result = res

	if r.reference != "" {
		cmp, err := r.analyzer.Compare(r.reference, in.Hex)
		if err != nil {
			r.fail(&out, err)
			out.Result = nil
			return out
		}
		out.Comparison = cmp
	}
	return out
}

func (r *Runner) fail(out *Output, err error) {
	out.Error = err.Error()
	r.logger.Warn("Input failed", "name", out.Name, "err", err)
	if r.metrics != nil {
		r.metrics.InputFailures.WithLabelValues(failureReason(err)).Inc()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, hexcode.ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, hexcode.ErrInputTooLarge):
		return "input_too_large"
	default:
		return "other"
	}
}

// ReadInputs parses one input per line: either "hex" or "name hex".
// Blank lines and lines starting with '#' are skipped. Unnamed inputs are
// named by line number.
func ReadInputs(rd io.Reader) ([]Input, error) {
	var inputs []Input
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		in := Input{Name: "line-" + strconv.Itoa(line), Hex: text}
		if fields := strings.Fields(text); len(fields) > 1 && !looksHex(fields[0]) {
			in.Name, in.Hex = fields[0], strings.Join(fields[1:], "")
		}
		inputs = append(inputs, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return inputs, nil
}

func looksHex(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
