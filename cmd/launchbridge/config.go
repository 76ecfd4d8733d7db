package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/launchbridge/internal/config"
	"github.com/mattjoyce/launchbridge/internal/doctor"
)

func newConfigCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect, validate and lock configuration",
	}
	cmd.AddCommand(newConfigCheckCommand(g))
	cmd.AddCommand(newConfigLockCommand(g))
	cmd.AddCommand(newConfigShowCommand(g))
	return cmd
}

func newConfigCheckCommand(g *globalFlags) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration against this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			result := doctor.New(cfg).Validate()
			out := cmd.OutOrStdout()
			if jsonOut {
				data, err := doctor.FormatJSON(result)
				if err != nil {
					return fmt.Errorf("render result JSON: %w", err)
				}
				fmt.Fprintln(out, data)
			} else {
				fmt.Fprint(out, doctor.FormatHuman(result))
			}
			if !result.Valid {
				return fmt.Errorf("configuration invalid")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the result as JSON")
	return cmd
}

func newConfigLockCommand(g *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Write blake3 checksums for every config file",
		Long: `lock records a blake3 hash of every loaded config file in a .checksums
manifest per directory. Subsequent loads refuse files whose hash changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.resolve()
			if err != nil {
				return err
			}
			report, err := config.Lock(path, dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dirs := make([]string, 0, len(report.Manifests))
			for dir := range report.Manifests {
				dirs = append(dirs, dir)
			}
			sort.Strings(dirs)
			for _, dir := range dirs {
				m := report.Manifests[dir]
				files := make([]string, 0, len(m.Hashes))
				for f := range m.Hashes {
					files = append(files, f)
				}
				sort.Strings(files)
				for _, f := range files {
					fmt.Fprintf(out, "%s  %s\n", m.Hashes[f], filepath.Join(dir, f))
				}
			}
			if report.Written {
				fmt.Fprintf(out, "Locked %d directory(ies)\n", len(dirs))
			} else {
				fmt.Fprintln(out, "Dry run: no checksums written")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the checksums without writing them")
	return cmd
}

func newConfigShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Backend.APIKey != "" {
				shown.Backend.APIKey = "[REDACTED]"
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
