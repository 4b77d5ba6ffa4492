package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/search"
)

// operator is the user CLI commands act as. The CLI runs with the
// operator's own access to the schema, so it may filter every entity.
var operator = auth.Principal{ID: "cli", Abilities: []string{"*"}}

// FilterOptions holds the filter flags shared by compile, validate and query.
type FilterOptions struct {
	*RootOptions
	Filter     string
	FilterFile string
}

func (o *FilterOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Filter, "filter", "f", "", "filter as JSON")
	cmd.Flags().StringVar(&o.FilterFile, "filter-file", "", "read the filter from a JSON or YAML file (- for stdin)")
}

func (o *FilterOptions) input(cmd *cobra.Command) FilterInput {
	return FilterInput{Inline: o.Filter, File: o.FilterFile, Stdin: cmd.InOrStdin()}
}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	FilterOptions
	Dialect string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{FilterOptions: FilterOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "compile <entity>",
		Short: "Compile a filter to SQL",
		Long: `Validate a filter against an entity's whitelist and print the
parameterized SQL it compiles to. Nothing is executed.

Examples:
  sieve compile users --filter '{"name":"bob"}'
  sieve compile users --filter-file filter.yaml --dialect postgres
  sieve compile orders --filter '{"items:sku":{"in":["A1"]}}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres); defaults to sql.dialect")

	return cmd
}

func runCompile(opts *CompileOptions, entity string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()
	if opts.Dialect != "" {
		cfg.SQL.Dialect = opts.Dialect
	}

	catalog, err := loadCatalog(cfg.Schema.Dir)
	if err != nil {
		return formatter.FailWith(ErrCodeSchema, ExitCommandError, err)
	}
	formatter.VerboseLog("Loaded %d entities from %s", len(catalog.Names()), cfg.Schema.Dir)

	filters, err := opts.input(cmd).read(cfg.Filter.MaxDepth)
	if err != nil {
		return failInput(formatter, err)
	}

	svc, err := newService(cfg, catalog, nil, opts.logOrDiscard())
	if err != nil {
		return formatter.FailWith(ErrCodeInput, ExitCommandError, err)
	}
	stmt, err := svc.Compile(context.Background(), operator, entity, filters)
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.SuccessText(stmt, statementText(stmt))
}

// failInput reports a filter that could not be read. A filter that was read
// but nested too deep is a rejection, not an input error.
func failInput(formatter *OutputFormatter, err error) error {
	if _, ok := filter.AsValidationError(err); ok {
		return formatter.Fail(err)
	}
	return formatter.FailWith(ErrCodeInput, ExitCommandError, err)
}

func statementText(stmt search.Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", stmt.SQL)
	args, err := json.Marshal(stmt.Args)
	if err != nil {
		args = []byte(fmt.Sprint(stmt.Args))
	}
	fmt.Fprintf(&b, "args: %s\n", args)
	for _, w := range stmt.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <entity>",
		Short: "Validate a filter without compiling it",
		Long: `Check a filter against an entity's whitelist and the operator
grammar. The first violation is reported with its field path.

Exit codes:
  0 - Filter is valid
  1 - Filter was rejected
  2 - Command error (schema not found, unreadable filter, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	opts.bind(cmd)
	return cmd
}

func runValidate(opts *FilterOptions, entity string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()

	catalog, err := loadCatalog(cfg.Schema.Dir)
	if err != nil {
		return formatter.FailWith(ErrCodeSchema, ExitCommandError, err)
	}
	filters, err := opts.input(cmd).read(cfg.Filter.MaxDepth)
	if err != nil {
		return failInput(formatter, err)
	}

	svc, err := newService(cfg, catalog, nil, opts.logOrDiscard())
	if err != nil {
		return formatter.FailWith(ErrCodeInput, ExitCommandError, err)
	}
	if err := svc.Validate(context.Background(), operator, entity, filters); err != nil {
		return formatter.Fail(err)
	}

	return formatter.SuccessText(map[string]any{"entity": entity, "valid": true}, "✓ filter is valid\n")
}
