package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/extract"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/source"
)

var extractFlags struct {
	onlyNew bool
	only    []string
	parquet bool
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run catalog queries and stage their results as CSV artifacts",
	RunE:  runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.BoolVar(&extractFlags.onlyNew, "new", false, "Only run queries whose artifact is missing from the store")
	f.StringSliceVar(&extractFlags.only, "only", nil, "Restrict to these artifact names")
	f.BoolVar(&extractFlags.parquet, "parquet", false, "Also write a Parquet copy of every artifact")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if extractFlags.parquet {
		cfg.Paths.ExportParquet = true
	}

	var res *extract.BatchResult
	if extractFlags.onlyNew {
		s, err := openSession(ctx, extractFlags.only)
		if err != nil {
			return err
		}
		defer s.Close()
		if res, err = s.pipe.ExtractNew(ctx); err != nil {
			return err
		}
	} else {
		cat, err := loadCatalog(extractFlags.only)
		if err != nil {
			return err
		}
		src, err := source.Open(ctx, cfg.Source)
		if err != nil {
			return err
		}
		defer src.Close()
		res = newExecutor(src).RunAll(ctx, cat)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d artifact(s) into %s, %d failed\n",
		len(res.Artifacts), cfg.Paths.Output, len(res.Failures))
	return res.Err()
}
