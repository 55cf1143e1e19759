package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stampforge/pkg/sample"
)

// sampleCommand creates the sample command.
func (c *CLI) sampleCommand() *cobra.Command {
	var (
		output string
		size   int
	)

	names := make([]string, len(sample.Shapes))
	for i, s := range sample.Shapes {
		names[i] = string(s)
	}

	cmd := &cobra.Command{
		Use:       "sample <" + strings.Join(names, "|") + ">",
		Short:     "Render a synthetic logo to try the converter",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".png"
			}
			if err := sample.Save(output, sample.Shape(args[0]), size); err != nil {
				return err
			}
			printSuccess("Rendered %s", args[0])
			printFile(output)
			printNextStep("Convert it", fmt.Sprintf("%s convert %s", appName, output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PNG path (default: <shape>.png)")
	cmd.Flags().IntVar(&size, "size", 512, "canvas size in pixels")
	return cmd
}
