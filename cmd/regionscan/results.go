package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/regionscan/internal/pipeline"
	"github.com/platinummonkey/regionscan/internal/store"
)

// resultsCmd groups the run history commands
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect saved extraction runs",
	Long: `List, show and delete extraction runs saved by extract.

The store is selected with --store-driver and --store-dsn:
  file       path to a JSON file (default ~/.regionscan-runs.json)
  postgres   a PostgreSQL connection string
  firestore  project/collection`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print a saved run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsDelete,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd, resultsShowCmd, resultsDeleteCmd)

	resultsShowCmd.Flags().Bool("summary", false, "print the run summary instead of the full record")
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return store.Open(commandContext(cmd), cfg.Store, log)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runResultsList(cmd *cobra.Command, _ []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.List(commandContext(cmd))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved runs")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tREGIONS\tFAILED\tQUALITY\tSTARTED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\t%s\n",
			r.ID, r.Status, r.DocumentType, r.Regions, r.Failed, r.MeanQuality,
			r.StartedAt.Local().Format(time.DateTime), r.Source)
	}
	return tw.Flush()
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.Get(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		fmt.Fprintln(cmd.OutOrStdout(), pipeline.Summarize(run.Document).String())
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func runResultsDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(commandContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}
