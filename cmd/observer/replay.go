package main

import (
	"github.com/aretw0/observer/internal/script"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a YAML scenario and print every callback",
	Long: `Registers the scenario's schemas, installs its watches and applies its steps
against the configured store. Each callback prints one line:

  <watch-name> <type>#<pk> <attr>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" && len(args) > 0 {
			file = args[0]
		}

		s, err := script.Load(file)
		if err != nil {
			return err
		}
		store, sessionOpts, err := openStore(cfg.Store, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		runner := script.NewRunner(
			script.WithOutput(cmd.OutOrStdout()),
			script.WithLogger(logger),
			script.WithDefaultWatcher(cfg.DefaultWatcher),
			script.WithSessionOptions(sessionOpts...),
		)
		res, err := runner.Run(cmd.Context(), s, store)
		if res != nil {
			res.Observer.UnwatchAll()
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringP("file", "f", "", "Scenario file")
}
