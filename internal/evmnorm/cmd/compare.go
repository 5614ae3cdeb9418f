package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"evmnorm/internal/evmnorm/styles"
	"evmnorm/internal/pipeline"
	"evmnorm/internal/ui/colorize"
)

// topDimensions is how many dimension contributions the report lists.
const topDimensions = 10

var compareCmd = &cobra.Command{
	Use:   "compare <bytecode-a> <bytecode-b>",
	Short: "Score the structural similarity of two programs",
	Example: `
# Compare two files, rendered as a report
evmnorm compare @A.bin @B.bin

# Machine readable output
evmnorm compare --json @A.bin @B.bin
  `,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		hexA, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		hexB, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		c, err := a.pipe.Compare(hexA, hexB)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			bts, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal comparison: %w", err)
			}
			printf(cmd, "%s\n", bts)
			return nil
		}

		out, err := styles.Render(compareReport(inputName(args[0]), inputName(args[1]), c), 100, !colorize.Enabled())
		if err != nil {
			return err
		}
		printf(cmd, "%s", out)
		return nil
	},
}

func init() {
	compareCmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	rootCmd.AddCommand(compareCmd)
}

// compareReport renders c as markdown.
func compareReport(nameA, nameB string, c *pipeline.Comparison) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s vs %s\n\n", escapeMarkdown(nameA), escapeMarkdown(nameB))
	fmt.Fprintf(&sb, "| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| score | %.4f (%s) |\n", c.FinalScore, styles.ScoreBand(c.FinalScore))
	fmt.Fprintf(&sb, "| confidence | %.4f |\n", c.Confidence)
	fmt.Fprintf(&sb, "| sequence | %.4f |\n", c.SequenceScore)
	fmt.Fprintf(&sb, "| schema | v%d |\n\n", c.SchemaVersion)

	if len(c.GroupScores) > 0 {
		groups := make([]string, 0, len(c.GroupScores))
		for g := range c.GroupScores {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		sb.WriteString("## Groups\n\n| group | cosine |\n|---|---|\n")
		for _, g := range groups {
			fmt.Fprintf(&sb, "| %s | %.4f |\n", g, c.GroupScores[g])
		}
		sb.WriteString("\n")
	}

	if len(c.DimensionScores) > 0 {
		dims := make([]string, 0, len(c.DimensionScores))
		for d := range c.DimensionScores {
			dims = append(dims, d)
		}
		sort.Slice(dims, func(i, j int) bool {
			di, dj := c.DimensionScores[dims[i]], c.DimensionScores[dims[j]]
			if di != dj {
				return di > dj
			}
			return dims[i] < dims[j]
		})
		if len(dims) > topDimensions {
			dims = dims[:topDimensions]
		}
		sb.WriteString("## Top contributions\n\n| dimension | share |\n|---|---|\n")
		for _, d := range dims {
			fmt.Fprintf(&sb, "| `%s` | %.4f |\n", d, c.DimensionScores[d])
		}
	}
	return sb.String()
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("|", "\\|", "`", "\\`", "*", "\\*", "_", "\\_").Replace(s)
}
