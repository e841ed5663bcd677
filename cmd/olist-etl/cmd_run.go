package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/validation"
)

var runFlags struct {
	validate bool
	format   string
	only     []string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract new artifacts, upload them and download what is missing locally",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.validate, "validate", false, "Validate the input directory afterwards")
	f.StringVar(&runFlags.format, "format", "ascii", "Summary format: ascii or markdown")
	f.StringSliceVar(&runFlags.only, "only", nil, "Restrict to these artifact names")
}

func runRun(cmd *cobra.Command, _ []string) error {
	mode, err := validation.ParseMode(runFlags.format)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, runFlags.only)
	if err != nil {
		return err
	}
	defer s.Close()

	out, runErr := s.pipe.ExtractSyncNew(ctx)
	if out.Extract != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "extract: %d new artifact(s), %d failed\n", len(out.Extract.Artifacts), len(out.Extract.Failures))
	}
	if out.Upload != nil {
		printSyncResult(cmd, out.Upload)
	}
	if out.Download != nil {
		printSyncResult(cmd, out.Download)
	}
	if runErr != nil || !runFlags.validate {
		return runErr
	}
	return validateDir(cmd, s.src, cfg.Paths.Input, mode, runFlags.only)
}
