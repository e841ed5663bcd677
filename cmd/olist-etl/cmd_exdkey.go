package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exdKeyCmd = &cobra.Command{
	Use:   "exd-key <name>",
	Short: "Extract one query, upload the artifact and download it back",
	Args:  cobra.ExactArgs(1),
	RunE:  runExdKey,
}

func runExdKey(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	name := args[0]
	if err := s.pipe.ExtractKey(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: extracted, uploaded to %s and downloaded into %s\n",
		name, s.remote.KeyFor(name), cfg.Paths.Input)
	return nil
}
