package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/observability"
	"github.com/matzehuels/stampforge/pkg/pipeline"
	"github.com/matzehuels/stampforge/pkg/preprocess"
)

// convertOpts holds the convert command flags.
type convertOpts struct {
	output      string
	configPath  string
	format      string
	backend     string
	debugDir    string
	noCache     bool
	refresh     bool
	interactive bool

	targetSize    float64
	baseThickness float64
	reliefHeight  float64
	padding       float64
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	opts := &convertOpts{}

	cmd := &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert a logo image into an STL stamp",
		Long: `Convert a logo image (PNG, JPEG, GIF, BMP, TIFF or WebP) into a watertight STL stamp.

The logo is extracted with contrast equalization, denoising and adaptive
thresholding, mirrored, placed on a padded base and extruded.`,
		Example: `  stampforge convert logo.png
  stampforge convert logo.png -o stamp.stl --target-size 40
  stampforge convert logo.jpg --debug-dir debug/ --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output STL path (default: <input>.stl)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&opts.format, "format", "", "STL encoding: binary or ascii")
	cmd.Flags().StringVar(&opts.backend, "backend", preprocess.DefaultBackend, "preprocessing backend: "+strings.Join(backendNames(), ", "))
	cmd.Flags().StringVar(&opts.debugDir, "debug-dir", "", "write intermediate images to this directory")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even when cached")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "show a live stage view")
	cmd.Flags().Float64Var(&opts.targetSize, "target-size", config.DefaultTargetSize, "longest side of the stamp in mm")
	cmd.Flags().Float64Var(&opts.baseThickness, "base-thickness", config.DefaultBaseThickness, "base thickness in mm")
	cmd.Flags().Float64Var(&opts.reliefHeight, "relief-height", config.DefaultReliefHeight, "relief height above the base in mm")
	cmd.Flags().Float64Var(&opts.padding, "padding", config.DefaultBasePadding, "base margin around the logo in mm")

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, input string, opts *convertOpts) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".stl"
	}

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	popts := pipeline.Options{
		Config:   cfg,
		Backend:  opts.backend,
		Refresh:  opts.refresh,
		DebugDir: opts.debugDir,
	}

	var result *pipeline.Result
	if opts.interactive {
		result, err = c.convertInteractive(cmd.Context(), runner, input, output, popts)
	} else {
		prog := newProgress(c.Logger)
		label := "Converting " + input
		spin := newSpinner(cmd.Context(), os.Stderr, label)
		observability.SetPipelineHooks(spinnerHooks{s: spin, prefix: label})
		spin.Start()
		result, err = runner.GenerateSolid(cmd.Context(), input, output, popts)
		spin.Stop()
		observability.SetPipelineHooks(observability.NoopPipelineHooks{})
		if err == nil {
			prog.done("Converted " + input)
		}
	}
	if result != nil && len(result.DebugFiles) > 0 {
		printInfo("Diagnostics")
		for _, f := range result.DebugFiles {
			printFile(f)
		}
	}
	if err != nil {
		return err
	}

	printSuccess("Wrote %s", output)
	printStats(result.Triangles, len(result.STL), result.CacheHit)
	printNextStep("Check the mesh", fmt.Sprintf("%s inspect %s", appName, output))
	return nil
}

// convertInteractive runs the conversion behind a bubbletea stage view.
func (c *CLI) convertInteractive(ctx context.Context, runner *pipeline.Runner, input, output string, opts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stage logs would tear the view; keep only warnings.
	level := c.Logger.GetLevel()
	c.Logger.SetLevel(LogWarn)
	defer c.Logger.SetLevel(level)

	p := tea.NewProgram(NewConvertModel(input, cancel), tea.WithOutput(os.Stderr))
	observability.SetPipelineHooks(stageHooks{p: p})
	defer observability.SetPipelineHooks(observability.NoopPipelineHooks{})

	var (
		final   tea.Model
		result  *pipeline.Result
		convErr error
	)
	err := runAndWait(cancel,
		func() {
			result, convErr = runner.GenerateSolid(ctx, input, output, opts)
			p.Send(convertDoneMsg{result: result, err: convErr})
		},
		func() (err error) {
			final, err = p.Run()
			return err
		})
	if err != nil {
		return nil, err
	}
	if m, ok := final.(ConvertModel); ok && (m.Result != nil || m.Err != nil) {
		return m.Result, m.Err
	}
	return result, convErr
}

// runAndWait runs work in the background and ui in the foreground. When ui
// returns, work is cancelled and awaited, so nothing it started outlives the
// call.
func runAndWait(cancel context.CancelFunc, work func(), ui func() error) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		work()
	}()
	err := ui()
	cancel()
	<-done
	return err
}

// applyFlagOverrides copies explicitly set flags onto cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, opts *convertOpts) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("target-size") {
		cfg.Geometry.TargetSize = opts.targetSize
	}
	if flags.Changed("base-thickness") {
		cfg.Geometry.BaseThickness = opts.baseThickness
	}
	if flags.Changed("relief-height") {
		cfg.Geometry.ReliefHeight = opts.reliefHeight
	}
	if flags.Changed("padding") {
		cfg.Geometry.BasePadding = opts.padding
	}
}

func backendNames() []string {
	return slices.Sorted(maps.Keys(preprocess.Backends))
}
