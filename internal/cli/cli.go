package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/gridseed/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// aliases maps shorthand flags to config keys.
var aliases = map[string]string{
	"f": "source",
	"o": "out",
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
//
// Settings are merged in order of precedence: flags, GRIDSEED_* environment
// variables, the gridseed.yaml file of the source folder, then defaults.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	return parse(args, output, os.LookupEnv)
}

func parse(args []string, output io.Writer, lookupEnv func(string) (string, bool)) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridseed", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridseed - Relational fake data generation from HCL node definitions.

Usage:
  gridseed [options] [SOURCE]

Arguments:
  SOURCE
    Folder containing *.node.hcl and *.group.hcl files (default ".").

Every option can also be set in SOURCE/gridseed.yaml (snake_case keys) or
with a GRIDSEED_<OPTION> environment variable.

Options:
`)
		flagSet.PrintDefaults()
	}

	def := app.DefaultConfig()
	flagSet.String("source", def.Source, "Folder with the definition files.")
	flagSet.String("f", def.Source, "Folder with the definition files (shorthand).")
	flagSet.String("out", def.Out, "Folder the generated tables are exported to.")
	flagSet.String("o", def.Out, "Output folder (shorthand).")
	flagSet.String("temp-dir", def.TempDir, "Folder of the durable store and staged batches.")
	flagSet.String("node-ext", def.NodeExt, "File extension of node definitions.")
	flagSet.String("group-ext", def.GroupExt, "File extension of group definitions.")
	flagSet.Int("concurrency", def.Concurrency, "Number of generation workers.")
	flagSet.Int("batch-size", def.BatchSize, "Items generated and staged per batch.")
	flagSet.Int("chunk-size", def.ChunkSize, "Items per worker task.")
	flagSet.Int("page-size", def.PageSize, "Rows per export page. 0 uses batch-size.")
	flagSet.String("format", def.Format, "Table export format: 'csv', 'json', 'parquet' or 'none'.")
	flagSet.Bool("export", def.Export, "Run the group export hooks.")
	flagSet.Bool("purge", def.Purge, "Drop the store before generating.")
	flagSet.Bool("keep-temp", def.KeepTemp, "Keep staged batch files.")
	flagSet.Uint64("seed", def.Seed, "Base random seed. 0 picks a random one.")
	flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")
	flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	verbose := flagSet.Bool("v", false, "Verbose output (log-level debug).")
	quiet := flagSet.Bool("q", false, "Quiet output (log-level error).")
	flagSet.Bool("watch", def.Watch, "Regenerate whenever a definition file changes.")
	flagSet.Int("healthcheck-port", def.HealthcheckPort, "Port for the HTTP health check server while watching. 0 is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one SOURCE argument, got %d", flagSet.NArg())}
	}
	slog.Debug("Arguments parsed successfully.")

	set := map[string]string{}
	flagSet.Visit(func(f *flag.Flag) {
		key := f.Name
		if alias, ok := aliases[key]; ok {
			key = alias
		}
		set[key] = f.Value.String()
	})
	if *verbose && *quiet {
		return nil, false, &ExitError{Code: 2, Message: "-v and -q are mutually exclusive"}
	}
	if *verbose {
		set["log-level"] = "debug"
	}
	if *quiet {
		set["log-level"] = "error"
	}

	cfg := def
	switch {
	case flagSet.NArg() == 1:
		cfg.Source = flagSet.Arg(0)
	case set["source"] != "":
		cfg.Source = set["source"]
	default:
		if v, ok := lookupEnv(app.EnvName("source")); ok {
			cfg.Source = v
		}
	}
	slog.Debug("Source folder determined.", "path", cfg.Source)

	if err := cfg.LoadFile(filepath.Join(cfg.Source, app.ProjectFile)); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if err := cfg.LoadEnv(lookupEnv); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	for _, key := range app.Keys {
		if v, ok := set[key]; ok {
			if err := cfg.Set(key, v); err != nil {
				return nil, false, &ExitError{Code: 2, Message: err.Error()}
			}
		}
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "source", config.Source, "seed", config.Seed)
	return config, false, nil
}
