package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/datagen/internal/config"
	"github.com/tensorplex-labs/datagen/internal/utils/logger"
	"github.com/tensorplex-labs/datagen/pkg/datagen"
)

var errUsage = errors.New("usage")

// env is what every subcommand runs against.
type env struct {
	client *datagen.Client
	out    io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"register":      {"register -email E -password P", cmdRegister},
	"login":         {"login -email E -password P", cmdLogin},
	"me":            {"me", cmdMe},
	"tokens":        {"tokens [-revoked] [-expired]", cmdTokens},
	"revoke":        {"revoke (-id N | TOKEN)", cmdRevoke},
	"strategies":    {"strategies", cmdStrategies},
	"generate":      {"generate -spec FILE [-format F] [-strategy S]", cmdGenerate},
	"analyze":       {"analyze -spec FILE", cmdAnalyze},
	"validate":      {"validate -rows FILE [-spec FILE]", cmdValidate},
	"text-generate": {"text-generate -spec FILE", cmdTextGenerate},
	"text-info":     {"text-info", cmdTextInfo},
	"text-validate": {"text-validate -spec FILE", cmdTextValidate},
	"text-examples": {"text-examples", cmdTextExamples},
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: datagen [flags] <command> [args]")
	fmt.Fprintln(w, "\nflags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w, "\ncommands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("datagen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	debug := fs.Bool("debug", false, "log at debug level")
	trace := fs.Bool("trace", false, "log at trace level")
	envFile := fs.String("env-file", "", "load variables from this file before reading the environment")
	output := fs.String("o", "", "write command output to this file instead of stdout")
	apiKey := fs.String("api-key", "", "API key, overrides "+config.EnvAPIKey)
	baseURL := fs.String("base-url", "", "API base URL, overrides DATAGEN_BASE_URL")
	version := fs.String("api-version", "", "API version, v1 or v2")
	metrics := fs.Bool("metrics", false, "log request counters when the command finishes")

	if err := fs.Parse(args); err != nil {
		usage(os.Stderr, fs)
		return err
	}
	if fs.NArg() == 0 {
		usage(os.Stderr, fs)
		return fmt.Errorf("%w: no command given", errUsage)
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage(os.Stderr, fs)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	if *envFile != "" {
		logger.LoadDotenv(*envFile)
	} else {
		logger.LoadDotenv()
	}

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	switch {
	case *trace:
		level = "trace"
	case *debug:
		level = "debug"
	}
	logger.Init(logger.Options{Environment: cfg.Environment, Level: level})

	clientCfg := datagen.ConfigFromEnv(&cfg.ClientEnvConfig)
	if *apiKey != "" {
		clientCfg.APIKey = *apiKey
	}
	if *baseURL != "" {
		clientCfg.BaseURL = *baseURL
	}
	if *version != "" {
		clientCfg.APIVersion = datagen.APIVersion(strings.ToLower(*version))
	}

	var opts []datagen.Option
	reg := prometheus.NewRegistry()
	if *metrics {
		m, err := datagen.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts = append(opts, datagen.WithMetrics(m))
	}

	client, err := datagen.New(clientCfg, opts...)
	if err != nil {
		return err
	}

	// -o output is buffered and written only once the command has succeeded.
	out := stdout
	var buf bytes.Buffer
	if *output != "" {
		out = &buf
	}

	err = cmd.run(ctx, &env{client: client, out: out}, fs.Args()[1:])
	if *metrics {
		logMetrics(reg)
	}
	if err != nil {
		return err
	}
	if *output != "" {
		if err := writeOutput(*output, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// writeOutput writes data to a temporary file next to path and renames it into place.
func writeOutput(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

func logMetrics(g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Error().Err(err).Msg("failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := log.Info().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				ev = ev.Uint64("count", m.GetHistogram().GetSampleCount()).
					Float64("sum_seconds", m.GetHistogram().GetSampleSum())
			}
			ev.Msg("client metrics")
		}
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// subFlags returns a flag set whose errors are returned rather than printed and exited on.
func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	return nil
}
