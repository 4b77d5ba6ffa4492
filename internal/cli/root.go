package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/config"
	"github.com/roach88/sieve/internal/logger"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	ConfigDir string // directory holding sieve.yaml
	SchemaDir string // overrides schema.dir

	Config *config.Config
	Log    logger.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sieve CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sieve",
		Short: "sieve - whitelisted filter compiler",
		Long: `Compile nested client filters into safe, parameterized SQL.

Entities, their searchable attributes and relations are declared in CUE.
Filters are validated against that whitelist before any SQL is emitted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", ".", "directory containing sieve.yaml")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "schema directory (overrides schema.dir)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// a command has not already written go to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil && !Reported(err) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// resolve loads the configuration and builds the logger.
func (o *RootOptions) resolve() error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	if o.SchemaDir != "" {
		cfg.Schema.Dir = o.SchemaDir
	}
	o.Config = &cfg

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	o.Log = logger.NewWithWriter(level, cfg.Log.Format, os.Stderr)
	return nil
}

// settings returns the resolved configuration, or the defaults when the
// command runs without the root (as in tests).
func (o *RootOptions) settings() config.Config {
	if o.Config == nil {
		cfg := config.Default()
		if o.SchemaDir != "" {
			cfg.Schema.Dir = o.SchemaDir
		}
		return cfg
	}
	return *o.Config
}

// logOrDiscard returns the resolved logger, or one that discards.
func (o *RootOptions) logOrDiscard() logger.Logger {
	if o.Config == nil {
		return logger.NewTestLogger()
	}
	return o.Log
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
