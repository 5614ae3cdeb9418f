package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"evmnorm/internal/vector"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <bytecode>",
	Short: "Normalize bytecode and print instructions and features as JSON",
	Example: `
# Print the full result
evmnorm normalize 0x6080604052

# Print only the normalized bytecode
evmnorm normalize --bytecode-only @Token.bin
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
		res, err := a.pipe.Normalize(hex)
		if err != nil {
			return err
		}

		if only, _ := cmd.Flags().GetBool("bytecode-only"); only {
			printf(cmd, "%s\n", res.NormalizedBytecode)
			return nil
		}
		bts, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		printf(cmd, "%s\n", bts)
		return nil
	},
}

var vectorCmd = &cobra.Command{
	Use:   "vector <bytecode>",
	Short: "Print the feature vector as a JSON array",
	Args:  cobra.ExactArgs(1),
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
		v, err := a.pipe.Vector(hex)
		if err != nil {
			return err
		}

		var out any = v.Slice()
		if named, _ := cmd.Flags().GetBool("named"); named {
			m := make(map[string]float64)
			for i, name := range vector.Names() {
				if v[i] != 0 {
					m[name] = v[i]
				}
			}
			out = m
		}
		bts, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		printf(cmd, "%s\n", bts)
		return nil
	},
}

func init() {
	normalizeCmd.Flags().BoolP("bytecode-only", "b", false, "Print only the normalized bytecode")
	vectorCmd.Flags().Bool("named", false, "Print non-zero dimensions keyed by name")
	rootCmd.AddCommand(normalizeCmd, vectorCmd)
}
