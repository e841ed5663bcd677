package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/expect"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/source"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/validation"
)

var validateFlags struct {
	dir    string
	format string
	only   []string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check staged artifacts against reference aggregates",
	Long: "validate computes reference aggregates from the source database, runs the\n" +
		"registered expectations over every artifact in the directory and exits\n" +
		"non-zero when any artifact has violations.",
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.dir, "dir", "", "Artifact directory (default: paths.input)")
	f.StringVar(&validateFlags.format, "format", "ascii", "Summary format: ascii or markdown")
	f.StringSliceVar(&validateFlags.only, "only", nil, "Restrict to these artifact names")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	mode, err := validation.ParseMode(validateFlags.format)
	if err != nil {
		return err
	}
	dir := validateFlags.dir
	if dir == "" {
		dir = cfg.Paths.Input
	}

	ctx := cmd.Context()
	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	return validateDir(cmd, src, dir, mode, validateFlags.only)
}

func validateDir(cmd *cobra.Command, src *source.Source, dir string, mode validation.Mode, only []string) error {
	vs := validation.NewSession(src, expect.DefaultRegistry(), validation.WithArtifacts(only...))
	summary, err := vs.Run(cmd.Context(), dir)
	if err != nil {
		return err
	}
	if err := summary.Render(cmd.OutOrStdout(), mode); err != nil {
		return err
	}
	if failed := summary.Failed(); len(failed) > 0 {
		return fmt.Errorf("validation failed: %d of %d artifact(s) have violations", len(failed), len(summary.Reports))
	}
	return nil
}
