package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a commented config.yaml holding the built-in defaults.

The file goes to --config when given, otherwise to
~/.config/linkrank/config.yaml, with 0600 permissions.

Examples:
  # Create ~/.config/linkrank/config.yaml
  linkrank init

  # Replace an existing file
  linkrank init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, err := config.WriteTemplate(configPath, initForce)
	if errors.Is(err, config.ErrConfigExists) {
		cmd.Printf("Config already exists at %s\n", path)
		cmd.Println("Use --force to overwrite.")
		return nil
	}
	if err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
