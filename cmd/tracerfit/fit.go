package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tracerfit/internal/logger"
	"tracerfit/pkg/export"
	"tracerfit/pkg/ingest"
	"tracerfit/pkg/report"
	"tracerfit/pkg/tracer"
)

func newFitCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit every configured model to the observations.",
		Long: `Read the monthly tracer input and the observations, fit every model listed
in the configuration and print a summary table.

Optionally:
- estimate parameter confidence intervals (--uncertainty)
- write a YAML summary (--result-file)
- write Parquet tables of curves and parameters (--parquet-dir)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd, v)
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "monthly input CSV (date, concentration, precipitation)")
	f.StringP("observations", "o", "", "observations CSV (date, concentration)")
	f.Float64("infiltration", 0, "infiltration fraction of April to September")
	f.BoolP("uncertainty", "u", false, "estimate parameter confidence intervals")
	f.Int("replicates", 0, "resampled observation sets per confidence pass")
	f.IntP("workers", "w", 0, "concurrent refits in the confidence pass")
	f.Uint64("seed", 0, "seed of the confidence resampling")
	f.String("result-file", "", "write a YAML summary to this file")
	f.String("parquet-dir", "", "write Parquet tables into this directory")
	f.Bool("color", true, "colorize tables")

	bind := map[string]string{
		"input":        "input.inputFile",
		"observations": "input.observationFile",
		"infiltration": "tracer.infiltration",
		"uncertainty":  "confidence.enabled",
		"replicates":   "confidence.replicates",
		"workers":      "processing.workers",
		"seed":         "processing.seed",
		"result-file":  "output.resultFile",
		"parquet-dir":  "output.parquetDir",
		"color":        "output.color",
	}
	for flag, key := range bind {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func runFit(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	log := logger.Setup(logger.Config{
		Debug:  cfg.Processing.Verbose,
		JSON:   v.GetBool("json-logs"),
		Writer: cmd.ErrOrStderr(),
	})

	raw, err := ingest.ReadInputSeries(cfg.Input.InputFile)
	if err != nil {
		return err
	}
	obs, err := ingest.ReadObservations(cfg.Input.ObservationFile)
	if err != nil {
		return err
	}
	log.Info("data.loaded", "input", cfg.Input.InputFile, "months", raw.Len(),
		"observations", cfg.Input.ObservationFile, "count", obs.Len())

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	params := cfg.TracerParams()
	params.Logger = log
	method := tracer.NewMethod(params)
	started := time.Now()
	results, err := method.Run(ctx, raw, obs, cfg.Tracer.Infiltration, cfg.Models, cfg.Confidence.Enabled)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := report.Options{Color: cfg.Output.Color, Precision: cfg.Fitting.Precision}
	if err := report.WriteResults(out, results, opts); err != nil {
		return fmt.Errorf("error writing results table: %w", err)
	}
	if cfg.Confidence.Enabled {
		if err := report.WriteAccuracy(out, results, opts); err != nil {
			return fmt.Errorf("error writing accuracy table: %w", err)
		}
	}

	if cfg.Output.ResultFile != "" {
		summary := export.Summary{StartYear: raw.StartYear(), Decay: params.Decay, Results: results}
		if err := export.WriteYAML(cfg.Output.ResultFile, summary); err != nil {
			return err
		}
		log.Info("results.written", "file", cfg.Output.ResultFile)
	}
	if cfg.Output.ParquetDir != "" {
		if err := export.WriteParquet(cfg.Output.ParquetDir, results); err != nil {
			return err
		}
		log.Info("parquet.written", "dir", cfg.Output.ParquetDir)
	}

	_, err = fmt.Fprintf(out, "Completed in %v with %d workers\n", time.Since(started).Round(time.Millisecond), method.Workers())
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
