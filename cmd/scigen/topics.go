// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scigen/internal/paper"
	"github.com/pdiddy/scigen/internal/rules"
)

var topicsCmd = &cobra.Command{
	Use:     "topics",
	Short:   "List the topic rule sets available to --topic",
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys, err := rules.Open(viper.GetString("rules-dir"))
		if err != nil {
			return err
		}
		names, err := rules.Topics(fsys)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(w, "No topics found.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
		return nil
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the grammar for undefined and unreachable symbols",
	Long: `Lint loads the base grammar and topic rule sets (all topics unless --topic
is given) and reports upper-case tokens that look like symbols but are never
defined, and symbols that no start symbol can reach.`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys, err := rules.Open(viper.GetString("rules-dir"))
		if err != nil {
			return err
		}
		report, err := paper.LintGrammar(fsys, splitList(viper.GetStringSlice("topic")), logger)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, tok := range sortedTokens(report.Undefined) {
			fmt.Fprintf(w, "undefined  %-24s used by %s\n", tok, strings.Join(report.Undefined[tok], ", "))
		}
		for _, name := range report.Unreachable {
			fmt.Fprintf(w, "unreachable  %s\n", name)
		}
		if !report.Clean() {
			return fmt.Errorf("grammar has %d undefined and %d unreachable symbol(s)",
				len(report.Undefined), len(report.Unreachable))
		}
		fmt.Fprintln(w, "Grammar is clean.")
		return nil
	},
}

func sortedTokens(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func init() {
	topicsCmd.Flags().String("rules-dir", "", "grammar directory (default: built-in grammar)")

	lintCmd.Flags().String("rules-dir", "", "grammar directory (default: built-in grammar)")
	lintCmd.Flags().StringSlice("topic", nil, "topics to lint (default: all)")

	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(lintCmd)
}
