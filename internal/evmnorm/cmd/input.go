package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// readInput resolves a bytecode argument: "-" reads stdin, "@path" reads a
// file, anything else is the hex itself.
func readInput(cmd *cobra.Command, arg string) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("read bytecode: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return arg, nil
	}
}

// inputName is the label shown for an argument in reports.
func inputName(arg string) string {
	switch {
	case arg == "-":
		return "stdin"
	case strings.HasPrefix(arg, "@"):
		return arg[1:]
	case len(arg) > 18:
		return arg[:10] + "…" + arg[len(arg)-6:]
	default:
		return arg
	}
}
