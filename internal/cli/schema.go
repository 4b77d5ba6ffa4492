package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/schema"
)

// EntityInfo describes one entity for the schema command.
type EntityInfo struct {
	Name       string         `json:"name"`
	Table      string         `json:"table"`
	PrimaryKey string         `json:"primary_key"`
	Fields     []FieldInfo    `json:"fields"`
	Searchable []string       `json:"searchable"`
	Relations  []RelationInfo `json:"relations,omitempty"`
}

// FieldInfo maps a filterable name to its column.
type FieldInfo struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// RelationInfo describes a declared relation.
type RelationInfo struct {
	Name       string `json:"name"`
	Entity     string `json:"entity"`
	LocalKey   string `json:"local_key"`
	ForeignKey string `json:"foreign_key"`
	Resolve    bool   `json:"resolve"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [entity...]",
		Short: "Load the schema and describe its entities",
		Long: `Load the CUE schema, check it, and print each entity's table,
fields, effective search whitelist and relations.

With no arguments every entity is described.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, names []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()

	catalog, err := loadCatalog(cfg.Schema.Dir)
	if err != nil {
		return formatter.FailWith(ErrCodeSchema, ExitCommandError, err)
	}
	if len(names) == 0 {
		names = catalog.Names()
	}

	infos := make([]EntityInfo, 0, len(names))
	for _, name := range names {
		model, ok := catalog.Entity(name)
		if !ok {
			return formatter.FailWith(ErrCodeUnknownEntity, ExitCommandError, fmt.Errorf("unknown entity %q", name))
		}
		infos = append(infos, describe(model))
	}

	return formatter.SuccessText(infos, schemaText(infos))
}

func describe(model *schema.Model) EntityInfo {
	def := model.Definition()
	info := EntityInfo{
		Name:       def.Name,
		Table:      def.Table,
		PrimaryKey: def.PrimaryKey,
		Fields:     make([]FieldInfo, 0, len(def.Fields)),
		Searchable: model.SearchAttributes(),
	}
	for _, f := range def.Fields {
		info.Fields = append(info.Fields, FieldInfo{Name: f.Name, Column: f.Column})
	}
	for _, r := range def.Relations {
		info.Relations = append(info.Relations, RelationInfo{
			Name:       r.Name,
			Entity:     r.Entity,
			LocalKey:   r.LocalKey,
			ForeignKey: r.ForeignKey,
			Resolve:    r.Resolve,
		})
	}
	return info
}

func schemaText(infos []EntityInfo) string {
	var b strings.Builder
	for i, info := range infos {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (table %s, key %s)\n", info.Name, info.Table, info.PrimaryKey)

		fields := make([]string, len(info.Fields))
		for j, f := range info.Fields {
			fields[j] = f.Name
			if f.Column != f.Name {
				fields[j] += "=" + f.Column
			}
		}
		fmt.Fprintf(&b, "  fields:     %s\n", strings.Join(fields, ", "))
		fmt.Fprintf(&b, "  searchable: %s\n", strings.Join(info.Searchable, ", "))
		for _, r := range info.Relations {
			resolved := ""
			if r.Resolve {
				resolved = " (resolved)"
			}
			fmt.Fprintf(&b, "  relation %s -> %s.%s = %s%s\n", r.Name, r.Entity, r.ForeignKey, r.LocalKey, resolved)
		}
	}
	return b.String()
}
