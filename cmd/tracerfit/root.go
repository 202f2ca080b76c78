package main

import (
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tracerfit/pkg/config"
)

// Set by the linker at build time.
var (
	version = "dev"
	commit  = "none"
)

// envPrefix prefixes every environment override, e.g. TRACERFIT_PROCESSING_WORKERS
const envPrefix = "TRACERFIT"

// newRootCmd builds the command tree. Each call returns independent
// commands and a fresh viper instance.
func newRootCmd() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:           "tracerfit",
		Short:         "Fit transit-time models to environmental tracer observations.",
		Long:          `tracerfit estimates groundwater transit times by fitting lumped-parameter models (DM, EM, EPM, PFM) to tracer observations.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "tracerfit.yaml", "YAML configuration file")
	pf.Bool("verbose", false, "enable debug logging")
	pf.Bool("json-logs", false, "write logs as JSON")
	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("processing.verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("json-logs", pf.Lookup("json-logs"))

	root.AddCommand(newFitCmd(v), newInitConfigCmd(v), newVersionCmd())
	return root
}

// newViper returns a viper instance reading TRACERFIT_* environment variables
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the YAML file named by the config key and applies
// environment and flag overrides on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.LoadConfig(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies every key set by a flag or an environment variable
// into cfg. Keys left unset keep the file value.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setInt("processing.workers", &cfg.Processing.Workers)
	if v.IsSet("processing.seed") {
		cfg.Processing.Seed = v.GetUint64("processing.seed")
	}
	setBool("processing.verbose", &cfg.Processing.Verbose)

	setFloat("tracer.halfLife", &cfg.Tracer.HalfLife)
	if v.IsSet("tracer.decayConstant") {
		k := v.GetFloat64("tracer.decayConstant")
		cfg.Tracer.DecayConstant = &k
	}
	setFloat("tracer.infiltration", &cfg.Tracer.Infiltration)

	setInt("fitting.maxIterations", &cfg.Fitting.MaxIterations)

	setBool("confidence.enabled", &cfg.Confidence.Enabled)
	setInt("confidence.replicates", &cfg.Confidence.Replicates)

	setString("input.inputFile", &cfg.Input.InputFile)
	setString("input.observationFile", &cfg.Input.ObservationFile)
	setString("output.resultFile", &cfg.Output.ResultFile)
	setString("output.parquetDir", &cfg.Output.ParquetDir)
	setBool("output.color", &cfg.Output.Color)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tracerfit.",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tracerfit CLI\n")
			cmd.Printf("  Version: %s\n", version)
			cmd.Printf("  Commit:  %s\n", commit)
			cmd.Printf("  Runtime: %s\n", runtime.Version())
		},
	}
}
