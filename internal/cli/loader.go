package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/sieve/internal/config"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/logger"
	"github.com/roach88/sieve/internal/querysql"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/search"
	"github.com/roach88/sieve/internal/store"
)

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadCatalog loads the schema in dir. Errors are LoadErrors carrying
// ErrCodeSchema and, for CUE errors, the source position.
func loadCatalog(dir string) (*schema.Catalog, error) {
	catalog, err := schema.LoadDir(dir, nil)
	if err == nil {
		return catalog, nil
	}
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		return nil, &LoadError{Code: ErrCodeSchema, Message: compileErr.Field + ": " + compileErr.Message, Pos: compileErr.Pos}
	}
	return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
}

// FilterInput is where a command reads its filter from.
type FilterInput struct {
	Inline string // JSON text
	File   string // JSON or YAML file; "-" reads Stdin
	Stdin  io.Reader
}

// read parses the filter. No input means the empty filter. A filter nested
// deeper than maxDepth is reported as a validation error.
func (in FilterInput) read(maxDepth int) (ir.IRObject, error) {
	var (
		v   ir.IRValue
		err error
	)
	switch {
	case in.Inline != "" && in.File != "":
		return nil, fmt.Errorf("--filter and --filter-file are mutually exclusive")
	case in.Inline != "":
		v, err = ir.UnmarshalJSONValue([]byte(in.Inline), maxDepth+1)
	case in.File != "":
		var data []byte
		if in.File == "-" {
			data, err = io.ReadAll(in.Stdin)
		} else {
			data, err = os.ReadFile(in.File)
		}
		if err != nil {
			return nil, fmt.Errorf("read filter: %w", err)
		}
		switch strings.ToLower(filepath.Ext(in.File)) {
		case ".yaml", ".yml":
			v, err = ir.UnmarshalYAMLValue(data, maxDepth+1)
		default:
			v, err = ir.UnmarshalJSONValue(data, maxDepth+1)
		}
	default:
		return ir.IRObject{}, nil
	}

	if errors.Is(err, ir.ErrTooDeep) {
		return nil, filter.DepthExceeded(maxDepth)
	}
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	switch obj := v.(type) {
	case ir.IRObject:
		return obj, nil
	case ir.IRNull:
		return ir.IRObject{}, nil
	default:
		return nil, fmt.Errorf("filter must be an object, got %s", ir.TypeName(v))
	}
}

// newService builds a search service from cfg. exec may be nil for a
// compile-only service.
func newService(cfg config.Config, catalog *schema.Catalog, exec store.Executor, log logger.Logger) (*search.Service, error) {
	dialect, err := querysql.ParseDialect(cfg.SQL.Dialect)
	if err != nil {
		return nil, err
	}
	opts := []search.Option{
		search.WithLogger(log),
		search.WithMaxDepth(cfg.Filter.MaxDepth),
		search.WithCacheSize(cfg.Cache.Size),
		search.WithLimits(cfg.SQL.DefaultLimit, cfg.SQL.MaxLimit),
		search.WithGuests(cfg.Auth.AllowGuest),
	}
	if exec != nil {
		opts = append(opts, search.WithExecutor(exec))
	}
	return search.NewService(catalog, dialect, opts...)
}

// openExecutor connects to the configured database. For SQLite, seed
// installs the demo shop tables and rows first.
func openExecutor(ctx context.Context, cfg config.Config, seed bool) (store.Executor, error) {
	switch querysql.Dialect(cfg.SQL.Dialect) {
	case querysql.Postgres:
		if cfg.Database.PostgresURL == "" {
			return nil, fmt.Errorf("database.postgres_url is required for the postgres dialect")
		}
		if seed {
			return nil, fmt.Errorf("--seed is only supported for sqlite")
		}
		return store.ConnectPostgres(ctx, cfg.Database.PostgresURL)
	default:
		db, err := store.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		if seed {
			if err := db.InstallDemo(ctx, true); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil
	}
}
