package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"goLite/internal/engine"
	"goLite/internal/types"
)

// demoCmd creates a users table, inserts two rows and prints them back.
func demoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo DB",
		Short: "Create a small users table and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.open(cmd, args[0], true)
			if err != nil {
				return err
			}
			defer eng.Close()
			out := cmd.OutOrStdout()

			if _, err := eng.CreateTable("users", []engine.Column{
				{Name: "id", Type: "INTEGER", RowIDAlias: true},
				{Name: "name", Type: "TEXT"},
				{Name: "active", Type: "BOOLEAN"},
			}); err != nil {
				return fmt.Errorf("CreateTable: %w", err)
			}
			fmt.Fprintln(out, "Table 'users' created.")

			for _, row := range [][]types.OwnedValue{
				{types.Integer(1), types.NewText("Alice"), types.Integer(1)},
				{types.Integer(2), types.NewText("Bob"), types.Integer(0)},
			} {
				id, err := eng.InsertRow("users", row)
				if err != nil {
					return fmt.Errorf("InsertRow: %w", err)
				}
				fmt.Fprintf(out, "Inserted row %d into 'users'.\n", id)
			}

			fmt.Fprintln(out, "\nSelecting all from 'users':")
			cols, rows, err := eng.SelectAll("users")
			if err != nil {
				return fmt.Errorf("SelectAll: %w", err)
			}
			fmt.Fprintln(out, strings.Join(cols, " | "))
			for _, r := range rows {
				parts := make([]string, len(r.Values))
				for i, v := range r.Values {
					parts[i] = v.String()
				}
				fmt.Fprintln(out, strings.Join(parts, " | "))
			}
			return eng.Close()
		},
	}
}
