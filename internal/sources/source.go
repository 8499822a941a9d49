// Package sources implements the suggestion data sources and the fan-out across them.
package sources

import (
	"context"

	"github.com/hyperjump/lmsearch/internal/models"
	"golang.org/x/sync/errgroup"
)

// Source returns the raw records matching a query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]models.Record, error)
}

// Attributes names the record attributes sources fill in when they build records
// themselves, so the records fit the configured resolution path.
type Attributes struct {
	Query     string
	Type      string
	ID        string
	LayerName string
	Title     string
}

// Fanout queries every source concurrently and waits for all of them. Results are
// returned per source in the order sources were given. The first error cancels the
// remaining fetches and is returned alone.
func Fanout(ctx context.Context, srcs []Source, query string) ([][]models.Record, error) {
	results := make([][]models.Record, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			recs, err := src.Fetch(gctx, query)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Flatten concatenates per-source results in source order.
func Flatten(results [][]models.Record) []models.Record {
	n := 0
	for _, r := range results {
		n += len(r)
	}
	out := make([]models.Record, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func applyType(rec models.Record, attr, label string) {
	if attr == "" || label == "" || rec.Has(attr) {
		return
	}
	rec[attr] = label
}
