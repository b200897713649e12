package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"goLite/internal/engine"
	"goLite/internal/types"
)

func headerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "header DB",
		Short: "Print the database header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()

			h := eng.Header()
			p := opts.printer(cmd)
			if p.json {
				return p.encode(h)
			}
			fmt.Fprintf(p.w, "page size:       %d\n", h.PageSize)
			fmt.Fprintf(p.w, "pages:           %d\n", h.PageCount)
			fmt.Fprintf(p.w, "freelist pages:  %d\n", h.FreelistCount)
			fmt.Fprintf(p.w, "change counter:  %d\n", h.ChangeCounter)
			fmt.Fprintf(p.w, "schema cookie:   %d\n", h.SchemaCookie)
			fmt.Fprintf(p.w, "schema format:   %d\n", h.SchemaFormat)
			fmt.Fprintf(p.w, "text encoding:   %d\n", h.TextEncoding)
			fmt.Fprintf(p.w, "user version:    %d\n", h.UserVersion)
			fmt.Fprintf(p.w, "sqlite version:  %d\n", h.LibraryVersion)
			return nil
		},
	}
}

func tablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables DB",
		Short: "List the tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()

			names, err := eng.ListTables()
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			if p.json {
				return p.encode(names)
			}
			for _, n := range names {
				fmt.Fprintln(p.w, n)
			}
			return nil
		},
	}
}

func schemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema DB [TABLE]",
		Short: "Print the schema table, or the columns of one table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()
			p := opts.printer(cmd)

			if len(args) == 2 {
				t, err := eng.Table(args[1])
				if err != nil {
					return err
				}
				if p.json {
					return p.encode(t)
				}
				for _, c := range t.Columns {
					line := c.Name
					if c.Type != "" {
						line += " " + c.Type
					}
					if c.RowIDAlias {
						line += " (rowid)"
					}
					fmt.Fprintln(p.w, line)
				}
				for _, ix := range t.Indexes {
					fmt.Fprintf(p.w, "index %s on page %d\n", ix.Name, ix.Root)
				}
				return nil
			}

			entries, err := eng.Schema()
			if err != nil {
				return err
			}
			if p.json {
				return p.encode(entries)
			}
			for _, ent := range entries {
				fmt.Fprintf(p.w, "%s %s on page %d: %s\n", ent.Type, ent.Name, ent.RootPage, ent.SQL)
			}
			return nil
		},
	}
}

// tableDump is one table's part of a dump.
type tableDump struct {
	Name    string               `json:"name"`
	SQL     string               `json:"sql"`
	Columns []string             `json:"columns"`
	Rows    [][]types.OwnedValue `json:"rows"`
	Indexes []string             `json:"indexes,omitempty"`
}

func dumpCmd(opts *options) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "dump DB [TABLE...]",
		Short: "Dump tables as SQL text, or JSON with --json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()

			names := args[1:]
			if len(names) == 0 {
				if names, err = eng.ListTables(); err != nil {
					return err
				}
			}
			schema, err := eng.Schema()
			if err != nil {
				return err
			}

			dumps := make([]tableDump, len(names))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, name := range names {
				i, name := i, name
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					d, err := dumpTable(eng, schema, name)
					if err != nil {
						return fmt.Errorf("dump %s: %w", name, err)
					}
					dumps[i] = d
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			p := opts.printer(cmd)
			if p.json {
				return p.encode(dumps)
			}
			return writeSQLDump(p, dumps)
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 4, "tables read at once")
	return cmd
}

func dumpTable(eng *engine.DBEngine, schema []engine.SchemaEntry, name string) (tableDump, error) {
	t, err := eng.Table(name)
	if err != nil {
		return tableDump{}, err
	}
	cols, rows, err := eng.SelectAll(t.Name)
	if err != nil {
		return tableDump{}, err
	}
	d := tableDump{Name: t.Name, SQL: t.SQL, Columns: cols, Rows: make([][]types.OwnedValue, len(rows))}
	for i, r := range rows {
		d.Rows[i] = r.Values
	}
	for _, ent := range schema {
		if ent.Type == "index" && ent.SQL != "" && strings.EqualFold(ent.TblName, t.Name) {
			d.Indexes = append(d.Indexes, ent.SQL)
		}
	}
	return d, nil
}

func writeSQLDump(p printer, dumps []tableDump) error {
	fmt.Fprintln(p.w, "BEGIN TRANSACTION;")
	for _, d := range dumps {
		fmt.Fprintf(p.w, "%s;\n", d.SQL)
		vals := make([]string, len(d.Columns))
		for _, row := range d.Rows {
			for i, v := range row {
				vals[i] = sqlLiteral(v)
			}
			fmt.Fprintf(p.w, "INSERT INTO %s VALUES(%s);\n", quoteName(d.Name), strings.Join(vals, ","))
		}
		for _, ix := range d.Indexes {
			fmt.Fprintf(p.w, "%s;\n", ix)
		}
	}
	_, err := fmt.Fprintln(p.w, "COMMIT;")
	return err
}

func selectCmd(opts *options) *cobra.Command {
	var (
		columns []string
		where   string
		order   string
		desc    bool
	)
	cmd := &cobra.Command{
		Use:   "select DB TABLE",
		Short: "Print rows of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()

			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			if order == "" {
				cols, rows, err := eng.Select(args[1], columns, w)
				if err != nil {
					return err
				}
				return opts.printer(cmd).rows(cols, rows)
			}
			if w != nil {
				return fmt.Errorf("--where and --order cannot be combined")
			}
			t, err := eng.Table(args[1])
			if err != nil {
				return err
			}
			rows, err := eng.SelectOrdered(t.Name, order, desc)
			if err != nil {
				return err
			}
			cols, rows, err := t.Project(rows, columns)
			if err != nil {
				return err
			}
			return opts.printer(cmd).rows(cols, rows)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&columns, "columns", nil, "columns to print")
	f.StringVar(&where, "where", "", "filter as column=value")
	f.StringVar(&order, "order", "", "column to order by")
	f.BoolVar(&desc, "desc", false, "descending order")
	return cmd
}

func aggCmd(opts *options) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "agg DB FUNC TABLE COLUMN",
		Short: "Compute avg, sum, count, max, min or group_concat over a column",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := engine.ParseAggKind(args[1])
			if err != nil {
				return err
			}
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			eng, err := opts.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer eng.Close()

			v, err := eng.Aggregate(args[2], args[3], kind, w)
			if err != nil {
				return err
			}
			return opts.printer(cmd).value(v)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "filter as column=value")
	return cmd
}

func insertCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insert DB TABLE COLUMN=VALUE...",
		Short: "Insert a row and print its rowid",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]types.OwnedValue, len(args)-2)
			for _, a := range args[2:] {
				col, v, err := parseAssignment(a)
				if err != nil {
					return err
				}
				values[col] = v
			}
			eng, err := opts.open(cmd, args[0], true)
			if err != nil {
				return err
			}
			id, err := eng.InsertNamed(args[1], values)
			if err != nil {
				eng.Close()
				return err
			}
			if err := eng.Close(); err != nil {
				return err
			}
			return opts.printer(cmd).value(types.Integer(id))
		},
	}
}

func deleteCmd(opts *options) *cobra.Command {
	var (
		where string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "delete DB TABLE",
		Short: "Delete the rows matching --where, or all rows with --all",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWhere(where)
			if err != nil {
				return err
			}
			if w == nil && !all {
				return fmt.Errorf("delete needs --where or --all")
			}
			eng, err := opts.open(cmd, args[0], true)
			if err != nil {
				return err
			}
			n, err := eng.DeleteWhere(args[1], w)
			if err != nil {
				eng.Close()
				return err
			}
			if err := eng.Close(); err != nil {
				return err
			}
			return opts.printer(cmd).value(types.Integer(int64(n)))
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "filter as column=value")
	cmd.Flags().BoolVar(&all, "all", false, "delete every row")
	return cmd
}

func createIndexCmd(opts *options) *cobra.Command {
	var unique bool
	cmd := &cobra.Command{
		Use:   "create-index DB NAME TABLE COLUMN...",
		Short: "Create an index and fill it from the table",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], true)
			if err != nil {
				return err
			}
			root, err := eng.CreateIndex(args[1], args[2], args[3:], unique)
			if err != nil {
				eng.Close()
				return err
			}
			if err := eng.Close(); err != nil {
				return err
			}
			return opts.printer(cmd).value(types.Integer(int64(root)))
		},
	}
	cmd.Flags().BoolVar(&unique, "unique", false, "reject duplicate keys")
	return cmd
}
