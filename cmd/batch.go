package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich a file of CNPJs concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var in io.Reader = os.Stdin
		if batchFile != "" && batchFile != "-" {
			f, err := os.Open(batchFile)
			if err != nil {
				return eris.Wrapf(err, "batch: open %s", batchFile)
			}
			defer f.Close() //nolint:errcheck
			in = f
		}
		ids, err := readTaxIDs(in)
		if err != nil {
			return err
		}

		env, err := initAgent(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		results := processBatch(ctx, ids, batchLimit, cfg.Batch.MaxConcurrent, func(ctx context.Context, id string) (*model.Response, error) {
			return env.Service.Enrich(ctx, id, "")
		})
		return writeOutput(os.Stdout, outputFormat, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one CNPJ per line (default stdin)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of CNPJs to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// readTaxIDs returns the non-blank lines of r, skipping # comments.
func readTaxIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: read input")
	}
	return ids, nil
}

// batchResult is one entry of the batch output. Exactly one of Response and
// Error is set.
type batchResult struct {
	Input    string          `json:"input" yaml:"input"`
	Response *model.Response `json:"response,omitempty" yaml:"response,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// enrichFunc is the callback signature for enriching one CNPJ.
type enrichFunc func(ctx context.Context, taxID string) (*model.Response, error)

// processBatch applies limit, then enriches ids concurrently. Results keep
// input order; an individual failure never aborts the batch.
func processBatch(ctx context.Context, ids []string, limit, concurrency int, enrich enrichFunc) []batchResult {
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	results := make([]batchResult, len(ids))
	if len(ids) == 0 {
		zap.L().Info("batch: no CNPJs to process")
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("cnpjs", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, id := range ids {
		g.Go(func() error {
			results[i].Input = id
			resp, err := enrich(gctx, id)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				zap.L().Error("enrichment failed", zap.String("input", id), zap.Error(err))
				return nil
			}
			succeeded.Add(1)
			results[i].Response = resp
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}
