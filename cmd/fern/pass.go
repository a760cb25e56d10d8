package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/orchestration"
)

var enrichCDCKey int64

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingest pass over the raw stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, func(ctx context.Context, o *orchestration.Orchestrator) (any, []error, error) {
			result, err := o.Ingest(ctx)
			if result == nil {
				return nil, nil, err
			}
			return result, result.Errors(), err
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Promote the tables ingested under --cdc-key into the enriched stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, func(ctx context.Context, o *orchestration.Orchestrator) (any, []error, error) {
			result, err := o.Enrich(ctx, enrichCDCKey)
			if result == nil {
				return nil, nil, err
			}
			return result, result.Errors(), err
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an ingest pass followed by an enrich pass under the same key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, func(ctx context.Context, o *orchestration.Orchestrator) (any, []error, error) {
			result, err := o.Run(ctx)
			if result == nil {
				return nil, nil, err
			}
			failures := result.Ingest.Errors()
			if result.Enrich != nil {
				failures = append(failures, result.Enrich.Errors()...)
			}
			return result, failures, err
		})
	},
}

func init() {
	enrichCmd.Flags().Int64Var(&enrichCDCKey, "cdc-key", 0, "CDC key of the ingest pass to promote")
	_ = enrichCmd.MarkFlagRequired("cdc-key")
}

// runPass prints the pass result as JSON. Failed tables make the command exit
// non-zero after the result is printed.
func runPass(cmd *cobra.Command, pass func(ctx context.Context, o *orchestration.Orchestrator) (any, []error, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, false, func(ctx context.Context, a *app) error {
		result, failures, err := pass(ctx, a.orchestrator)
		if result != nil {
			if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d table(s) failed", len(failures))
		}
		return nil
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
