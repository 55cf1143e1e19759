package cli

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/fsutil"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the conversion config",
	}

	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())

	return cmd
}

// configInitCommand creates the "config init" subcommand.
func (c *CLI) configInitCommand() *cobra.Command {
	var (
		stdout bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config as TOML",
		Long: `Write the default config as TOML. Without a path the file goes to the
user config directory, where convert and serve pick it up automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout {
				return config.Default().Encode(cmd.OutOrStdout())
			}

			path, err := defaultConfigPath(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInvalidPath, "%s already exists (use --force to overwrite)", path)
			}
			if err := writeDefaultConfig(path); err != nil {
				return err
			}
			printSuccess("Wrote default config")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stdout, "stdout", false, "print instead of writing a file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// configShowCommand creates the "config show" subcommand.
func (c *CLI) configShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "TOML config file")
	return cmd
}

func defaultConfigPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	dir, err := configDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "locate config dir")
	}
	return filepath.Join(dir, configFileName), nil
}

func writeDefaultConfig(path string) error {
	var buf bytes.Buffer
	if err := config.Default().Encode(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "create %s", filepath.Dir(path))
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "write %s", path)
	}
	return nil
}
