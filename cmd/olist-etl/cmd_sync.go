package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/syncer"
)

var syncFlags struct {
	onlyNew bool
	only    []string
}

var syncCmd = &cobra.Command{
	Use:       "sync upload|download",
	Short:     "Synchronize staged artifacts with the remote store",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"upload", "download"},
	RunE:      runSync,
}

func init() {
	f := syncCmd.Flags()
	f.BoolVar(&syncFlags.onlyNew, "new", false, "Only transfer artifacts the other side lacks")
	f.StringSliceVar(&syncFlags.only, "only", nil, "Restrict to these artifact names")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	remote, err := openStore(ctx)
	if err != nil {
		return err
	}
	coord := newCoordinator(remote, syncFlags.only)

	var pass func(context.Context) (*syncer.Result, error)
	switch {
	case args[0] == "upload" && syncFlags.onlyNew:
		pass = coord.UploadNew
	case args[0] == "upload":
		pass = coord.UploadAll
	case syncFlags.onlyNew:
		pass = coord.DownloadNew
	default:
		pass = coord.DownloadAll
	}

	res, err := pass(ctx)
	if err != nil {
		return err
	}
	printSyncResult(cmd, res)
	return nil
}

func printSyncResult(cmd *cobra.Command, res *syncer.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d transferred, %d skipped, %s\n",
		res.Direction, res.Mode, len(res.Transferred), len(res.Skipped), humanize.Bytes(uint64(res.Bytes)))
}
