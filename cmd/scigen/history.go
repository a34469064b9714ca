// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scigen/internal/runlog"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, inspect, and export recorded runs",
	Long: `History reads the run database. Every generate and replay records its
seed and full configuration there, so any document can be regenerated with
replay. Run IDs may be abbreviated to any unique prefix.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistoryStrict()
		if err != nil {
			return err
		}
		defer hist.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := hist.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-8s  %-20s  %-20s  %-7s  %-8s  %s\n",
			"ID", "Started", "Seed", "Product", "Status", "Artifact")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, r := range runs {
			fmt.Fprintf(w, "%-8s  %-20s  %-20d  %-7s  %-8s  %s\n",
				r.ID[:8], r.StartedAt.Format("2006-01-02 15:04:05"), r.Seed, r.Config.Product, r.Status, r.Artifact)
		}
		fmt.Fprintf(w, "\n%d runs\n", len(runs))
		return nil
	},
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one run as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistoryStrict()
		if err != nil {
			return err
		}
		defer hist.Close()

		run, err := hist.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshaling run: %w", err)
		}
		w := cmd.OutOrStdout()
		w.Write(data)
		fmt.Fprintf(w, "\nreproduce: %s\n", reproduceCommand(run.Config))
		return nil
	},
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every run to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		hist, err := openHistoryStrict()
		if err != nil {
			return err
		}
		defer hist.Close()

		if output == "" {
			return hist.Export(cmd.Context(), cmd.OutOrStdout(), format)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		if err := hist.Export(cmd.Context(), f, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
		return nil
	},
}

// openHistoryStrict opens the run history for commands that need it.
func openHistoryStrict() (*runlog.Log, error) {
	path, err := historyPath()
	if err != nil {
		return nil, err
	}
	return runlog.Open(path)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	historyListCmd.Flags().Bool("json", false, "output runs as JSON")

	historyExportCmd.Flags().String("format", runlog.FormatYAML, "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
