package styles

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	md := "# Report\n\n| group | score |\n|---|---|\n| freq | 0.98 |\n"

	plain, err := Render(md, 80, true)
	if err != nil || plain != md {
		t.Errorf("plain Render() = %q, %v", plain, err)
	}

	out, err := Render(md, 80, false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Report", "freq", "0.98"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestScoreBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1, "near-identical"},
		{0.95, "near-identical"},
		{0.9, "similar"},
		{0.8, "similar"},
		{0.7, "related"},
		{0.2, "unrelated"},
		{0, "unrelated"},
		{-0.1, "unrelated"},
	}
	for _, tt := range tests {
		if got := ScoreBand(tt.score); got != tt.want {
			t.Errorf("ScoreBand(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
