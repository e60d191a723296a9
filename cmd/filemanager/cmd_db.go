package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/database"
	"github.com/shashiranjanraj/filemanager/pkg/migration"
)

// withRunner opens DB_DRIVER for the duration of fn.
func withRunner(fn func(out io.Writer, r *migration.Runner) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		db, err := database.Connect()
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		out := cmd.OutOrStdout()
		return fn(out, migration.New(db, out))
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: withRunner(func(out io.Writer, r *migration.Runner) error {
		n, err := r.Run()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Ran %d migration(s).\n", n)
		return nil
	}),
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: withRunner(func(out io.Writer, r *migration.Runner) error {
		n, err := r.Rollback()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Rolled back %d migration(s).\n", n)
		return nil
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show whether each migration has run",
	RunE: withRunner(func(out io.Writer, r *migration.Runner) error {
		rows, err := r.Status()
		if err != nil {
			return err
		}
		return printStatus(out, rows)
	}),
}

func printStatus(out io.Writer, rows []migration.StatusRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tBATCH")
	for _, row := range rows {
		status, batch := "Pending", "-"
		if row.Ran {
			status, batch = "Ran", fmt.Sprint(row.Batch)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Name, status, batch)
	}
	return w.Flush()
}
