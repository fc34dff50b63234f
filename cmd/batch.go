package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/input"
	"github.com/sells-group/company-qualifier/internal/qualify"
)

var (
	batchFile      string
	batchOrgs      []string
	batchCriteria  string
	batchID        string
	batchSize      int
	batchCallback  string
	batchOut       string
	batchColumn    string
	batchSheet     string
	batchDedupe    bool
	batchNoDeliver bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a list of companies against criteria",
	Long:  "Reads org numbers from --org or a .xlsx, .csv or text file and evaluates them in chunks. Omit --criteria to retrieve company data only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orgs, err := collectOrgNumbers()
		if err != nil {
			return err
		}

		env, err := initQualifier(cfg, "batch")
		if err != nil {
			return err
		}

		req := qualify.BatchRequest{
			OrgNumbers:  orgs,
			Criteria:    batchCriteria,
			BatchID:     batchID,
			BatchSize:   batchSize,
			CallbackURL: batchCallback,
		}
		run := env.Orchestrator.EvaluateBatch
		if batchNoDeliver {
			run = env.Orchestrator.TestEvaluateBatch
		}

		resp, err := runBatch(ctx, run, req)
		if err != nil {
			return err
		}

		if batchOut != "" {
			if err := input.WriteOutcomesXLSX(batchOut, resp.Results); err != nil {
				return err
			}
			zap.L().Info("batch results written", zap.String("path", batchOut))
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

type batchRunner func(context.Context, qualify.BatchRequest) (*qualify.BatchResponse, error)

func runBatch(ctx context.Context, run batchRunner, req qualify.BatchRequest) (*qualify.BatchResponse, error) {
	resp, err := run(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "batch")
	}
	zap.L().Info("batch complete",
		zap.String("batch_id", resp.BatchID),
		zap.Int("successful", resp.Summary.SuccessfulEvaluations),
		zap.Int("failed", resp.Summary.FailedEvaluations),
		zap.Int("matching", resp.Summary.MatchingCompanies),
		zap.String("match_rate", resp.Summary.MatchRate),
	)
	if resp.Callback != nil && !resp.Callback.Delivered {
		zap.L().Warn("batch callback not delivered",
			zap.String("url", resp.Callback.URL),
			zap.String("error", resp.Callback.Error),
		)
	}
	return resp, nil
}

// collectOrgNumbers merges --org values and the --file contents.
func collectOrgNumbers() ([]string, error) {
	var orgs []string
	for _, o := range batchOrgs {
		if o = strings.TrimSpace(o); o != "" {
			orgs = append(orgs, o)
		}
	}
	if batchFile != "" {
		fromFile, err := input.ReadOrgNumbers(batchFile, input.Options{
			Column: batchColumn,
			Sheet:  batchSheet,
			Dedupe: batchDedupe,
		})
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, fromFile...)
	}
	if len(orgs) == 0 {
		return nil, eris.New("batch: provide --org or --file")
	}
	return orgs, nil
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFile, "file", "", "org-number list (.xlsx, .csv or one per line)")
	f.StringSliceVar(&batchOrgs, "org", nil, "org numbers (repeatable or comma separated)")
	f.StringVar(&batchCriteria, "criteria", "", "free-text match criteria (empty retrieves data only)")
	f.StringVar(&batchID, "batch-id", "", "batch identifier (default random UUID)")
	f.IntVar(&batchSize, "batch-size", 0, "companies per chunk (default from config)")
	f.StringVar(&batchCallback, "callback", "", "URL to POST results to")
	f.StringVar(&batchOut, "out", "", "write results as XLSX to this path")
	f.StringVar(&batchColumn, "column", "", "org-number column header in --file")
	f.StringVar(&batchSheet, "sheet", "", "XLSX sheet name in --file")
	f.BoolVar(&batchDedupe, "dedupe", false, "drop repeated org numbers from --file")
	f.BoolVar(&batchNoDeliver, "no-callback", false, "never POST results, even when a callback is configured")
	rootCmd.AddCommand(batchCmd)
}
