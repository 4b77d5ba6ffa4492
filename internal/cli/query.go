package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/search"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	FilterOptions
	Limit  uint64
	Offset uint64
	DB     string // overrides database.sqlite_path
	Seed   bool   // install the demo shop first
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Statement search.Statement `json:"statement"`
	Limit     uint64           `json:"limit"`
	Offset    uint64           `json:"offset"`
	Rows      []ir.IRObject    `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{FilterOptions: FilterOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "Run a filter against the database",
		Long: `Compile a filter and run it against the configured database,
printing the matching rows in primary key order.

Examples:
  sieve query users --db :memory: --seed --filter '{"age":{"gte":18}}'
  sieve query orders --filter '{"status":{"in":["paid","pending"]}}' --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().Uint64Var(&opts.Limit, "limit", 0, "page size (0 uses sql.default_limit)")
	cmd.Flags().Uint64Var(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (overrides database.sqlite_path)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "install the demo shop tables and rows (sqlite only)")

	return cmd
}

func runQuery(opts *QueryOptions, entity string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	cfg := opts.settings()
	if opts.DB != "" {
		cfg.Database.SQLitePath = opts.DB
	}

	catalog, err := loadCatalog(cfg.Schema.Dir)
	if err != nil {
		return formatter.FailWith(ErrCodeSchema, ExitCommandError, err)
	}
	filters, err := opts.input(cmd).read(cfg.Filter.MaxDepth)
	if err != nil {
		return failInput(formatter, err)
	}

	exec, err := openExecutor(ctx, cfg, opts.Seed)
	if err != nil {
		return formatter.FailWith(ErrCodeExecution, ExitCommandError, err)
	}
	defer exec.Close()
	formatter.VerboseLog("Connected to %s database", cfg.SQL.Dialect)

	svc, err := newService(cfg, catalog, exec, opts.logOrDiscard())
	if err != nil {
		return formatter.FailWith(ErrCodeInput, ExitCommandError, err)
	}
	res, err := svc.Search(ctx, operator, entity, filters, search.Page{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return formatter.Fail(err)
	}

	result := QueryResult{
		Statement: res.Statement,
		Limit:     res.Page.Limit,
		Offset:    res.Page.Offset,
		Rows:      res.Rows,
	}
	return formatter.SuccessText(result, rowsText(res))
}

func rowsText(res search.Result) string {
	var b strings.Builder
	for _, row := range res.Rows {
		data, err := ir.MarshalJSONValue(row)
		if err != nil {
			fmt.Fprintf(&b, "<%v>\n", err)
			continue
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d row(s) (limit %d, offset %d)\n", len(res.Rows), res.Page.Limit, res.Page.Offset)
	return b.String()
}
