//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// main package builds jqual as a standalone command that infers nullability and mutability
// annotations for the methods of one or more program files and prints them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/jqual"
	"go.uber.org/jqual/config"
	"go.uber.org/jqual/program"
)

// options are the driver flags that are not part of config.Config.
type options struct {
	configPath  string
	snapshot    string
	prior       string
	metricsPath string
	format      string
	pretty      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	flagConf := config.Default()

	cmd := &cobra.Command{
		Use:   "jqual [flags] program.yaml...",
		Short: "Infer nullability and mutability annotations for JVM methods",
		Long: `Infers @NotNull/@Nullable and @Mutable annotations for the parameters, return values and
fields of the methods in the given program files, and prints the annotations in scope.

Examples:
  jqual app.yaml                              # YAML annotations on stdout
  jqual --include-classes com/acme/ app.yaml  # only report com/acme classes
  jqual --snapshot out.snap app.yaml          # save the annotations for a later run
  jqual --prior out.snap client.yaml          # reuse them as library knowledge`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := resolveConfig(cmd, opts.configPath, flagConf)
			if err != nil {
				return err
			}
			return run(cmd.Context(), conf, &opts, args, stdout, stderr)
		},
	}

	// Every config key is lifted to a flag; flags that are set override the config file.
	flags := cmd.Flags()
	flags.IntVar(&flagConf.Workers, "workers", flagConf.Workers, "Number of methods analyzed concurrently, 0 means GOMAXPROCS.")
	flags.IntVar(&flagConf.Rounds, "rounds", flagConf.Rounds, "Maximum number of whole-program rounds.")
	flags.StringVar(&flagConf.Mode, "mode", flagConf.Mode, `Inference mode, "full" or "declared".`)
	flags.IntVar(&flagConf.SupertypeDepth, "supertype-depth", flagConf.SupertypeDepth, "Depth cap of the supertype walk of the mutability catalog.")
	flags.StringVar(&flagConf.CatalogPath, "catalog", "", "YAML mutability catalog replacing the built-in one.")
	flags.StringSliceVar(&flagConf.IncludeClasses, "include-classes", nil, "Comma-separated internal class name prefixes to report annotations for, default is all classes.")
	flags.StringSliceVar(&flagConf.ExcludeClasses, "exclude-classes", nil, "Comma-separated internal class name prefixes to never report. This takes precedence over include-classes.")
	flags.StringVar(&flagConf.LogLevel, "log-level", flagConf.LogLevel, "Log level: debug, info, warn or error.")

	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file.")
	flags.StringVar(&opts.snapshot, "snapshot", "", "Write the inferred annotations to this snapshot file.")
	flags.StringVar(&opts.prior, "prior", "", "Read prior annotations from this snapshot file.")
	flags.StringVar(&opts.metricsPath, "metrics", "", "Write the session metrics in Prometheus text format to this file.")
	flags.StringVar(&opts.format, "format", "yaml", `Output format, "yaml" or "text".`)
	flags.BoolVar(&opts.pretty, "pretty", false, "Colorize text output.")
	return cmd
}

// resolveConfig loads the config file, if any, and applies the flags the user set on top of it.
func resolveConfig(cmd *cobra.Command, path string, flagConf *config.Config) (*config.Config, error) {
	if path == "" {
		return flagConf, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	conf, err := config.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	overrides := map[string]func(){
		"workers":         func() { conf.Workers = flagConf.Workers },
		"rounds":          func() { conf.Rounds = flagConf.Rounds },
		"mode":            func() { conf.Mode = flagConf.Mode },
		"supertype-depth": func() { conf.SupertypeDepth = flagConf.SupertypeDepth },
		"catalog":         func() { conf.CatalogPath = flagConf.CatalogPath },
		"include-classes": func() { conf.IncludeClasses = flagConf.IncludeClasses },
		"exclude-classes": func() { conf.ExcludeClasses = flagConf.ExcludeClasses },
		"log-level":       func() { conf.LogLevel = flagConf.LogLevel },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	return conf, nil
}

func run(ctx context.Context, conf *config.Config, opts *options, paths []string, stdout, stderr io.Writer) error {
	if opts.format != "yaml" && opts.format != "text" {
		return fmt.Errorf("unknown output format %q", opts.format)
	}
	level, err := config.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	reg := prometheus.NewRegistry()
	sessionOpts := []jqual.Option{jqual.WithLogger(logger), jqual.WithMetrics(jqual.NewMetrics(reg))}
	if opts.prior != "" {
		prior, err := readSnapshot(opts.prior)
		if err != nil {
			return err
		}
		sessionOpts = append(sessionOpts, jqual.WithPrior(prior))
	}
	session, err := jqual.NewSession(conf, sessionOpts...)
	if err != nil {
		return err
	}

	p, err := program.Load(paths...)
	if err != nil {
		return err
	}
	logger.Debug("program loaded", "classes", len(p.Classes()), "methods", len(p.Methods()))

	res, err := session.Run(ctx, p)
	if err != nil {
		return err
	}

	switch opts.format {
	case "yaml":
		err = writeYAML(stdout, res)
	case "text":
		err = writeText(stdout, res, opts.pretty)
	}
	if err != nil {
		return fmt.Errorf("write annotations: %w", err)
	}

	if opts.snapshot != "" {
		if err := writeSnapshot(opts.snapshot, res.Snapshot()); err != nil {
			return err
		}
	}
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	for _, e := range res.Errors {
		msg := fmt.Sprintf("`%s`: %v", e.Method, e.Err)
		if opts.pretty {
			msg = prettyPrintErrorMessage(msg)
		}
		fmt.Fprintln(stderr, msg)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("analysis failed for %d methods", len(res.Errors))
	}
	return nil
}

func readSnapshot(path string) (*jqual.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prior snapshot: %w", err)
	}
	defer f.Close()
	return jqual.DecodeSnapshot(f)
}

func writeSnapshot(path string, s *jqual.Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close snapshot: %w", cerr)
		}
	}()
	return s.Encode(f)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jqual: %v\n", err)
		stop()
		os.Exit(1)
	}
}
