package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/sensor"
)

// listPorts is replaced in tests.
var listPorts = sensor.Ports

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := listPorts()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.Description != "" && p.Description != p.Name {
					fmt.Fprintf(out, "%s (%s)\n", p.Name, p.Description)
				} else {
					fmt.Fprintln(out, p.Name)
				}
			}
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(opts.configPath); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", opts.configPath)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			if err := config.Default().Save(opts.configPath); err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
