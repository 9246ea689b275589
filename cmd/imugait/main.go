// imugait turns a directory of IMU running-trial recordings into tidy
// summary tables: peak accelerations, aligned cross-sensor peaks, stride
// timing, RMS, sample entropy and spectral cadence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/imu-gait/config"
	"github.com/RyanBlaney/imu-gait/ingest"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/offsets"
	"github.com/RyanBlaney/imu-gait/pipeline"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/summary"
	"github.com/RyanBlaney/imu-gait/trial"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "imugait",
		Short: "Summarize IMU running trials",
		Long: `imugait processes multi-sensor IMU running-trial recordings (one CSV per
trial and sensor) into long-format summary tables.

Commands:
  run              Run the full pipeline over a directory of recordings
  resolve <key>    Show how dataset keys map to subject, location and trial`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		runCmd(),
		resolveCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath, inputDir, offsetsPath, outDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if inputDir != "" {
				cfg.Input.Dir = inputDir
			}
			if offsetsPath != "" {
				cfg.Input.Offsets = offsetsPath
			}
			if outDir != "" {
				cfg.Output.Dir = outDir
			}

			logger, err := cfg.Log.NewLogger()
			if err != nil {
				return err
			}
			logging.SetGlobalLogger(logger)
			if s, ok := logger.(interface{ Sync() error }); ok {
				defer s.Sync()
			}

			collector := report.NewCollector()
			var offs *offsets.Table
			if cfg.Input.Offsets != "" {
				if offs, err = readOffsets(cfg.Input.Offsets); err != nil {
					return err
				}
			}

			c, err := ingest.NewReader(cfg.Input.TimeColumn, collector).ReadDir(cfg.Input.Dir)
			if err != nil {
				return err
			}
			if c.Len() == 0 {
				return fmt.Errorf("no readable recordings in %s", cfg.Input.Dir)
			}

			res, err := pipeline.New(cfg, collector).Run(ctx, c, offs)
			if err != nil {
				return err
			}
			if err := writeOutputs(cfg.Output, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows, %d diagnostics, run %s -> %s\n",
				len(res.Rows), collector.Len(), res.Report.RunID, cfg.Output.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (defaults and IMUGAIT_* env when empty)")
	cmd.Flags().StringVar(&inputDir, "input", "", "directory of recording CSVs (overrides input.dir)")
	cmd.Flags().StringVar(&offsetsPath, "offsets", "", "offset table CSV (overrides input.offsets)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (overrides output.dir)")

	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <key>...",
		Short: "Resolve dataset keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := trial.NewResolver()
			out := cmd.OutOrStdout()
			var errs []error
			for _, key := range args {
				id, err := resolver.Resolve(ingest.KeyFromFilename(key))
				if err != nil {
					fmt.Fprintf(out, "%s\terror: %v\n", key, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(out, "%s\tsubject=%s run_type=%s location=%s serial=%s trial=%d schema=%s\n",
					key, id.Subject, id.RunType, id.Location, id.Serial, id.Trial, id.Schema)
			}
			return errors.Join(errs...)
		},
	}
}

func readOffsets(path string) (*offsets.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open offsets: %w", err)
	}
	defer f.Close()
	return offsets.ReadCSV(f)
}

func writeOutputs(cfg config.OutputConfig, res *pipeline.Result) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name  string
		skip  bool
		write func(io.Writer) error
	}{
		{"summary.csv", false, func(w io.Writer) error { return summary.WriteCSV(w, res.Rows) }},
		{"peak_counts.csv", len(res.Counts) == 0, func(w io.Writer) error { return summary.WritePeakCountsCSV(w, res.Counts) }},
		{"export.csv", !cfg.Export, func(w io.Writer) error { return summary.WriteExportCSV(w, res.Export) }},
		{"summary_wide.csv", !cfg.Wide, func(w io.Writer) error { return summary.Pivot(res.Rows).WriteCSV(w) }},
		{"run_report.yaml", false, res.Report.WriteYAML},
	}
	for _, f := range files {
		if f.skip {
			continue
		}
		if err := writeFile(filepath.Join(cfg.Dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
