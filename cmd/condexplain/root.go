package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	condbuilder "github.com/nlstn/go-condbuilder"
	"github.com/nlstn/go-condbuilder/internal/query"
	"github.com/nlstn/go-condbuilder/internal/render"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "condexplain",
		Short: "Show the SQL an identifier filter and extra conditions render to",
		Long: `condexplain builds a condition tree from an identifier filter and raw
conditions, then prints the statement it renders to for each dialect.

  condexplain --key id,code --ids 1:1,2:1 --where "x = 1"`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	man := newConfigManager(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := man.load()
		if err != nil {
			return err
		}
		return explain(cmd.OutOrStdout(), cfg)
	}
	return cmd
}

// explain renders the configured tree for every selected dialect as a
// markdown table followed by the tree fingerprint.
func explain(w io.Writer, cfg explainConfig) error {
	if cfg.NoColor {
		color.NoColor = true
	}

	conds := condbuilder.NewBuilder()
	if cfg.IDs != "" {
		ids, err := parseIDs(cfg.KeyColumns, cfg.IDs)
		if err != nil {
			return err
		}
		if err := conds.WhereInIDs(cfg.KeyColumns, ids); err != nil {
			return err
		}
	}
	for _, where := range cfg.Where {
		if err := conds.AddRawCondition(where); err != nil {
			return err
		}
	}
	tree := conds.Build()

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"Dialect", "SQL", "Args"})

	for _, dialect := range cfg.Dialects {
		r := render.Renderer{Dialect: dialect, CollapseIn: !cfg.NoIn, MaxInClauseSize: cfg.MaxIn}

		var sql string
		var args []interface{}
		var err error
		if cfg.Goqu {
			sql, args, err = r.GoquSelect(cfg.Table, tree)
		} else {
			sql, args, err = query.New(nil, dialect).
				WithTable(cfg.Table).
				WithRenderer(r).
				WithConditions(conds).
				ToSQL()
		}
		if err != nil {
			return fmt.Errorf("%s: %w", dialect, err)
		}
		if err := table.Append([]string{string(dialect), sql, fmt.Sprint(args)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	label := color.New(color.FgCyan, color.Bold).SprintFunc()
	_, err := fmt.Fprintf(w, "\n%s %016x\n%s %s\n", label("fingerprint:"), tree.Fingerprint(), label("tree:"), tree)
	return err
}

// parseIDs splits "1,2,3" for a single key or "1:1,2:1" for a composite key.
// Integer-looking values become int64, anything else stays a string.
func parseIDs(keyColumns []string, raw string) ([]interface{}, error) {
	var ids []interface{}
	for i, element := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(element), ":")
		if len(keyColumns) == 1 {
			if len(parts) != 1 {
				return nil, fmt.Errorf("identifier %d: %q has %d parts, key has 1 column", i, element, len(parts))
			}
			ids = append(ids, parseValue(parts[0]))
			continue
		}
		if len(parts) != len(keyColumns) {
			return nil, fmt.Errorf("identifier %d: %q has %d parts, key has %d columns", i, element, len(parts), len(keyColumns))
		}
		tuple := make(map[string]interface{}, len(parts))
		for j, column := range keyColumns {
			tuple[column] = parseValue(parts[j])
		}
		ids = append(ids, tuple)
	}
	return ids, nil
}

func parseValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
