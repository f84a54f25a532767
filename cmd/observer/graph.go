package main

import (
	"fmt"

	"github.com/aretw0/observer/internal/presentation/graph"
	"github.com/aretw0/observer/internal/script"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the schema of a scenario as a diagram",
	Long:  `Reads a scenario and outputs a Mermaid diagram (graph LR) of its types and relations. Watched types are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" && len(args) > 0 {
			file = args[0]
		}

		s, err := script.Load(file)
		if err != nil {
			return err
		}

		schemas := make([]domain.Schema, 0, len(s.Schemas))
		for _, spec := range s.Schemas {
			schemas = append(schemas, spec.Schema())
		}

		overlay := &graph.Overlay{}
		for _, w := range s.Watches {
			overlay.WatchedTypes = append(overlay.WatchedTypes, w.Type)
		}
		for _, step := range s.Steps {
			if step.Watch != nil {
				overlay.WatchedTypes = append(overlay.WatchedTypes, step.Watch.Type)
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(schemas, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("file", "f", "", "Scenario file")
}
