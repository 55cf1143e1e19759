package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mesh"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.stl>",
		Short: "Report size, volume and watertightness of an STL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", args[0])
			}
			defer f.Close()

			solid, err := mesh.ReadSTL(f)
			if err != nil {
				return err
			}
			report := solid.Inspect()
			fmt.Println(renderReport(args[0], report))

			if !report.Watertight() {
				printWarning("mesh has %d open edges", report.OpenEdges)
			} else {
				printSuccess("watertight")
			}
			if report.NonManifoldEdges > 0 {
				printDetail("%d edges are shared by more than two triangles (stacked slabs or corner contacts)", report.NonManifoldEdges)
			}
			return nil
		},
	}
}

// renderReport formats r as a two-column table.
func renderReport(name string, r mesh.Report) string {
	size := r.Size()
	rows := [][]string{
		{"triangles", fmt.Sprintf("%d", r.Triangles)},
		{"size", fmt.Sprintf("%.2f × %.2f × %.2f mm", size.X, size.Y, size.Z)},
		{"min", fmt.Sprintf("(%.2f, %.2f, %.2f)", r.Min.X, r.Min.Y, r.Min.Z)},
		{"max", fmt.Sprintf("(%.2f, %.2f, %.2f)", r.Max.X, r.Max.Y, r.Max.Z)},
		{"area", fmt.Sprintf("%.2f mm²", r.Area)},
		{"volume", fmt.Sprintf("%.2f mm³", r.Volume)},
		{"open edges", fmt.Sprintf("%d", r.OpenEdges)},
		{"non-manifold", fmt.Sprintf("%d", r.NonManifoldEdges)},
		{"degenerate", fmt.Sprintf("%d", r.Degenerate)},
	}

	keyStyle := lipgloss.NewStyle().Foreground(colorGray)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", name).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return StyleTitle
			case col == 0:
				return keyStyle
			default:
				return StyleNumber
			}
		})
	return t.Render()
}
