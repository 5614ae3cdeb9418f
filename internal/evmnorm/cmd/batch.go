package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"evmnorm/internal/batch"
	"evmnorm/internal/metrics"
)

var batchCmd = &cobra.Command{
	Use:   "batch <inputs-file>",
	Short: "Normalize many inputs in parallel, one JSON line per input",
	Long: `Batch reads one input per line, either "hex" or "name hex", and prints one
JSON object per input in input order. Lines starting with '#' are skipped.
Use "-" to read the inputs from stdin.`,
	Example: `
# Analyze a corpus on 8 workers
evmnorm batch --workers 8 corpus.txt

# Score every input against a reference and export metrics
evmnorm batch --reference @Token.bin --metrics-file batch.prom corpus.txt
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %v", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %v", err)
			}
			defer pprof.StopCPUProfile()
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		inputs, err := readBatchInputs(cmd, args[0])
		if err != nil {
			return err
		}

		workers := a.cfg.WorkerCount()
		if cmd.Flags().Changed("workers") {
			workers, _ = cmd.Flags().GetInt("workers")
		}
		m := metrics.NewBatchMetrics()
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg, m); err != nil {
			return err
		}
		opts := []batch.Option{
			batch.WithWorkers(workers),
			batch.WithMetrics(m),
			batch.WithLogger(a.logger.Logger),
		}
		if ref, _ := cmd.Flags().GetString("reference"); ref != "" {
			hex, err := readInput(cmd, ref)
			if err != nil {
				return err
			}
			opts = append(opts, batch.WithReference(hex))
		}

		a.logger.Info("Starting batch", "inputs", len(inputs), "workers", workers)
		outputs, runErr := batch.NewRunner(a.pipe, opts...).Run(cmd.Context(), inputs)

		enc := json.NewEncoder(cmd.OutOrStdout())
		failed := 0
		for _, out := range outputs {
			if out.Error != "" {
				failed++
			}
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}

		if a.cache != nil {
			stats := a.cache.Stats()
			m.CacheLookups.WithLabelValues("hit").Add(float64(stats.Hits))
			m.CacheLookups.WithLabelValues("miss").Add(float64(stats.Misses))
		}
		metricsFile := a.cfg.MetricsFile
		if cmd.Flags().Changed("metrics-file") {
			metricsFile, _ = cmd.Flags().GetString("metrics-file")
		}
		if metricsFile != "" {
			if err := metrics.WriteTextfile(metricsFile, reg); err != nil {
				return err
			}
		}

		a.logger.Info("Batch finished", "inputs", len(outputs), "failed", failed)
		return runErr
	},
}

// readBatchInputs reads the inputs list from path, or stdin for "-".
func readBatchInputs(cmd *cobra.Command, path string) ([]batch.Input, error) {
	if path == "-" {
		return batch.ReadInputs(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inputs: %w", err)
	}
	defer f.Close()
	return batch.ReadInputs(f)
}

func init() {
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default from config, or one per CPU)")
	batchCmd.Flags().StringP("reference", "r", "", "Bytecode to compare every input against")
	batchCmd.Flags().String("metrics-file", "", "Write prometheus metrics to this file when done")
	batchCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.AddCommand(batchCmd)
}
