package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/setup"
)

func initCmd() *cobra.Command {
	var (
		yes       bool
		noStarter bool
		noMCP     bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up a lesson project in the current directory",
		Long: `Create the content tree with starter lessons for each platform, write
.lessons/config.toml, and register the MCP server in .mcp.json.

Existing lessons and an existing config file are never overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := setup.RunInit(setup.InitOptions{
				ContentDir: config.ContentOverride,
				Yes:        yes,
				NoStarter:  noStarter,
				NoMCP:      noMCP,
				Version:    Version,
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept all defaults without prompting")
	cmd.Flags().BoolVar(&noStarter, "no-starter", false, "Do not write starter lessons")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Do not register the MCP server")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage lessons configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.ShowConfig())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print path to config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p := config.FindConfigFile(); p != "" {
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			}
			return fmt.Errorf("no config file found: run 'lessons config init'")
		},
	})

	var force bool
	initSub := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := config.ProjectDir()
			path := config.ConfigFilePath(projectDir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists. Use --force to overwrite", path)
			}
			if err := config.GenerateConfig(projectDir, config.ContentOverride); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initSub.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initSub)

	return cmd
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Manage integrations",
	}

	var remove bool
	mcpSub := &cobra.Command{
		Use:   "mcp",
		Short: "Register the lessons MCP server in .mcp.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := config.ProjectDir()
			out := cmd.OutOrStdout()
			if remove {
				removed, err := setup.RemoveMCP(projectDir)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(out, "lessons is not registered in .mcp.json")
					return nil
				}
				fmt.Fprintln(out, "Removed lessons from .mcp.json")
				return nil
			}
			root, err := config.RequireContentRoot()
			if err != nil {
				return err
			}
			if err := setup.SetupMCP(projectDir, root); err != nil {
				return err
			}
			fmt.Fprintln(out, "Registered lessons in .mcp.json")
			return nil
		},
	}
	mcpSub.Flags().BoolVar(&remove, "remove", false, "Remove the registration instead")
	cmd.AddCommand(mcpSub)
	return cmd
}
