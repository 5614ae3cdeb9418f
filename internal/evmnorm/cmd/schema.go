package cmd

import (
	"github.com/spf13/cobra"

	"evmnorm/internal/config"
	"evmnorm/internal/vector"
)

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Print the JSON schema of the config file",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bts, err := config.Schema()
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", bts)
		return nil
	},
}

var dimsCmd = &cobra.Command{
	Use:    "dims",
	Short:  "List the feature vector dimensions",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printf(cmd, "# schema v%d, %d dimensions\n", vector.SchemaVersion, vector.Dimensions)
		for i, name := range vector.Names() {
			printf(cmd, "%3d %s\n", i, name)
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd, dimsCmd)
}
