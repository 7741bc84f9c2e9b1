package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaldhq/skald/pkg/diagram"
)

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [playbook.md]",
	Short: "Render a playbook as a Mermaid or ASCII flow diagram",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	pb, err := loadPlaybook(filePath)
	if err != nil {
		return err
	}

	out, err := diagram.Generate(pb, filepath.Base(filePath), diagram.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Output format: mermaid or ascii")
	rootCmd.AddCommand(diagramCmd)
}
