package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/observer"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of observer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "observer version %s\n", strings.TrimSpace(observer.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
