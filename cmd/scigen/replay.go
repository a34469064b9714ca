// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scigen/internal/rules"
	"github.com/pdiddy/scigen/pkg/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Regenerate a recorded run from its seed and configuration",
	Long: `Replay looks up a run in history and generates it again with the same
seed, year, and settings, so the text is identical to the original.
--mode and --output may be changed; everything else comes from the record.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistoryStrict()
		if err != nil {
			return err
		}
		run, err := hist.Get(cmd.Context(), args[0])
		hist.Close()
		if err != nil {
			return err
		}

		cfg := replayConfig(run.Config, cmd.Flags().Changed("mode"), cmd.Flags().Changed("output"))
		if err := cfg.Validate(); err != nil {
			return err
		}
		fsys, err := rules.Open(cfg.RulesDir)
		if err != nil {
			return fmt.Errorf("replaying %s: %w", run.ID, err)
		}
		logger.Info("replaying run", "run", run.ID, "seed", run.Seed)
		return generate(cmd.Context(), fsys, cfg, toolchainConfig(), cmd.OutOrStdout())
	},
}

// replayConfig returns the recorded configuration with the delivery
// settings the user overrode. A recorded output path is dropped so the
// replay does not collide with the original artifact.
func replayConfig(recorded types.GenerationConfig, modeSet, outputSet bool) types.GenerationConfig {
	cfg := recorded
	cfg.Debug = viper.GetBool("debug")
	cfg.Output = ""
	if modeSet {
		cfg.Mode = types.OutputMode(viper.GetString("mode"))
	}
	if outputSet {
		cfg.Output = viper.GetString("output")
	}
	return cfg
}

func init() {
	addDeliveryFlags(replayCmd)

	rootCmd.AddCommand(replayCmd)
}
