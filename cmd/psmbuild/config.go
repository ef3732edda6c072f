// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/psmbuild/psmbuild/internal/config"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/pkg/types"
)

// newConfigCommand creates the `psmbuild config` command tree.
func newConfigCommand(root *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage psmbuild configuration",
		Long: `Manage psmbuild configuration.

Configuration is stored in:
  - Linux: ~/.config/psmbuild/config.cue
  - macOS: ~/Library/Application Support/psmbuild/config.cue
  - Windows: %APPDATA%\psmbuild\config.cue

Every key can be overridden with a PSMBUILD_ environment variable, for
example PSMBUILD_VCS_BACKEND=go-git.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, root)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.OutOrStdout(), force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.OutOrStdout(), root)
		},
	})

	var schema bool
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema {
				fmt.Fprint(cmd.OutOrStdout(), config.Schema())
				return nil
			}
			cfg, err := loadConfig(cmd.Context(), root)
			if err != nil {
				return reportError(cmd, err, types.ExitUsage, root.verbose)
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	}
	dumpCmd.Flags().BoolVar(&schema, "schema", false, "print the schema the file is validated against")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func showConfig(cmd *cobra.Command, root *rootFlagValues) error {
	cfg, err := loadConfig(cmd.Context(), root)
	if err != nil {
		return reportError(cmd, err, types.ExitUsage, true)
	}
	w := cmd.OutOrStdout()

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	value := func(v any) string { return valueStyle.Render(fmt.Sprint(v)) }

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	source, err := config.NewProvider().Source(root.loadOptions())
	if err != nil || source == "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("vcs"))
	fmt.Fprintf(w, "  backend: %s\n", value(cfg.VCS.Backend))
	fmt.Fprintf(w, "  git_binary: %s\n", value(cfg.VCS.GitBinary))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("analyzer"))
	if cfg.Analyzer.Command == "" {
		fmt.Fprintf(w, "  command: %s\n", SubtitleStyle.Render("(built-in re-parse)"))
	} else {
		fmt.Fprintf(w, "  command: %s\n", value(cfg.Analyzer.Command))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("output"))
	fmt.Fprintf(w, "  encoding: %s\n", value(cfg.Output.Encoding))
	fmt.Fprintf(w, "  newline: %s\n", value(cfg.Output.Newline))
	fmt.Fprintf(w, "  mark_generated: %s\n", value(cfg.Output.MarkGenerated))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", value(cfg.UI.ColorScheme))
	fmt.Fprintf(w, "  verbose: %s\n", value(cfg.UI.Verbose))

	return nil
}

func initConfig(w io.Writer, force bool) error {
	path, written, err := config.CreateDefaultConfig("", force)
	if err != nil {
		return issue.WrapWithOperation(err, "create config")
	}
	if !written {
		fmt.Fprintf(w, "%s Configuration already exists at %s (use --force to overwrite)\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(w io.Writer, root *rootFlagValues) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.FilePath("")
	if err != nil {
		return err
	}
	if root.configPath != "" {
		cfgPath = root.configPath
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", cfgPath)
	return nil
}
