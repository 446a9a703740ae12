package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/stackreview/internal/config"
)

// ConfigCommand returns the config command with its init and validate
// subcommands.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the stackreview configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "stackreview.toml",
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("output")
					if err := config.Init(path); err != nil {
						return fmt.Errorf("failed to write config: %w", err)
					}
					fmt.Printf("Wrote starter configuration to %s\n", path)
					fmt.Println("Fill in the [phabricator] and [repository] sections before running a review")
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Check that the configuration can run a review",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("failed to load config: %w", err)
					}
					if err := config.Validate(cfg); err != nil {
						return fmt.Errorf("invalid configuration: %w", err)
					}
					fmt.Println("Configuration is valid")
					return nil
				},
			},
		},
	}
}
