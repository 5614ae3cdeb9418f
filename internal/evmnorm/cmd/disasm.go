package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"evmnorm/internal/metadata"
	"evmnorm/internal/normalize"
	"evmnorm/internal/ui/colorize"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <bytecode>",
	Short: "Print an instruction listing",
	Example: `
# Raw listing, metadata trailer included
evmnorm disasm @Token.bin

# Listing after normalization, constants shown as tokens
evmnorm disasm --normalized @Token.bin
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		hex, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		prog, err := a.pipe.Disassemble(hex)
		if err != nil {
			return err
		}

		listing := prog.String()
		if normalized, _ := cmd.Flags().GetBool("normalized"); normalized {
			listing = normalize.Normalize(prog, a.pipe.Config()).String()
		} else if prog.Metadata != nil {
			listing += fmt.Sprintf("; metadata %s at 0x%04x, %d bytes\n",
				describeSpan(prog.Metadata), prog.Metadata.Start, prog.Metadata.Len())
		}

		out, err := colorize.ColorizeListing(listing)
		if err != nil {
			return err
		}
		printf(cmd, "%s", out)
		return nil
	},
}

func init() {
	disasmCmd.Flags().BoolP("normalized", "n", false, "List the normalized program")
	rootCmd.AddCommand(disasmCmd)
}

func describeSpan(s *metadata.Span) string {
	kind := s.Method
	if s.HashKind != "" {
		kind = s.HashKind
	}
	if s.Compiler != "" {
		kind += " solc " + s.Compiler
	}
	return kind
}
