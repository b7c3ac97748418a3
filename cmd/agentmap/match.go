package main

import (
	"context"
	"fmt"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/usecase"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// maxParallelMatches bounds concurrent orchestrations for a batch.
const maxParallelMatches = 4

// matchResult is the outcome of one MSE in a batch. Exactly one of View and
// Error is set.
type matchResult struct {
	MSEID string                 `json:"mse_id" yaml:"mse_id"`
	View  *usecase.DashboardView `json:"view,omitempty" yaml:"view,omitempty"`
	Error string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Kind  domain.ErrorKind       `json:"kind,omitempty" yaml:"kind,omitempty"`
}

func newMatchCmd() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Classifies MSEs and shows their top seller network matches",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "mse-id", Usage: "MSE id, repeat for a batch", Required: true},
			&cli.Int64Flag{Name: "top-k", Usage: "Number of matches per MSE (defaults to matching.top_k)"},
			&cli.StringFlag{Name: "lang", Usage: "Explainer language [en, hi]", Value: "en"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}

			results := runBatch(ctx, e.orchestrator(), cmd.StringSlice("mse-id"), int(cmd.Int64("top-k")), usecase.SelectLanguage(cmd.String("lang")))
			if len(results) == 1 && results[0].Error != "" {
				return fmt.Errorf("%s", results[0].Error)
			}
			if len(results) == 1 {
				return e.encode(results[0].View)
			}
			return e.encode(results)
		},
	}
}

// runBatch runs one orchestration per id. Failures are reported per id and
// do not cancel the rest of the batch. Results keep the input order.
func runBatch(ctx context.Context, matcher usecase.Matcher, ids []string, topK int, lang usecase.Language) []matchResult {
	results := make([]matchResult, len(ids))

	var g errgroup.Group
	g.SetLimit(maxParallelMatches)

	for i, raw := range ids {
		g.Go(func() error {
			results[i].MSEID = raw
			resp, err := matcher.RunRaw(ctx, raw, topK)
			if err != nil {
				results[i].Error = domain.Message(err)
				results[i].Kind = domain.KindOf(err)
				return nil
			}
			view := usecase.Render(&domain.DashboardState{Result: resp}, lang)
			results[i].View = &view
			return nil
		})
	}
	_ = g.Wait()

	return results
}
