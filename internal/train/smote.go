package train

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// SMOTE oversamples the minority class with synthetic points interpolated
// between a minority row and one of its K nearest minority neighbours, until
// both classes have the same size.
type SMOTE struct {
	K    int
	Seed int64
}

// Resample returns the original rows followed by the synthetic ones. Inputs
// are not modified. Balanced inputs are returned unchanged.
func (s SMOTE) Resample(ctx context.Context, X [][]float64, y []int) ([][]float64, []int, error) {
	good, bad := ClassCounts(y)
	minority, nMin, nMaj := 1, bad, good
	if good < bad {
		minority, nMin, nMaj = 0, good, bad
	}
	if nMin == nMaj {
		return X, y, nil
	}

	k := min(s.K, nMin-1)
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: %d minority rows cannot be oversampled", ErrDegenerateClasses, nMin)
	}

	minRows := make([][]float64, 0, nMin)
	for i, label := range y {
		if label == minority {
			minRows = append(minRows, X[i])
		}
	}

	neighbours, err := nearestNeighbours(ctx, minRows, k)
	if err != nil {
		return nil, nil, err
	}

	nNew := nMaj - nMin
	rng := rand.New(rand.NewSource(s.Seed))
	outX := make([][]float64, len(X), len(X)+nNew)
	copy(outX, X)
	outY := make([]int, len(y), len(y)+nNew)
	copy(outY, y)

	diff := make([]float64, len(minRows[0]))
	for n := 0; n < nNew; n++ {
		pick := rng.Intn(nMin * k)
		base := minRows[pick/k]
		other := minRows[neighbours[pick/k][pick%k]]
		gap := rng.Float64()

		floats.SubTo(diff, other, base)
		synth := make([]float64, len(base))
		floats.AddScaledTo(synth, base, gap, diff)
		outX = append(outX, synth)
		outY = append(outY, minority)
	}

	log.Debug().
		Int("minority_class", minority).
		Int("minority_rows", nMin).
		Int("synthetic_rows", nNew).
		Int("k", k).
		Msg("SMOTE resampled training split")
	return outX, outY, nil
}

// nearestNeighbours finds, for every row, the k closest other rows by
// Euclidean distance. Ties break on the lower index so the result does not
// depend on scheduling.
func nearestNeighbours(ctx context.Context, rows [][]float64, k int) ([][]int, error) {
	out := make([][]int, len(rows))
	workers := runtime.GOMAXPROCS(0)
	block := (len(rows) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(rows); start += block {
		start, end := start, min(start+block, len(rows))
		g.Go(func() error {
			type cand struct {
				idx  int
				dist float64
			}
			cands := make([]cand, 0, len(rows)-1)
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				cands = cands[:0]
				for j := range rows {
					if j != i {
						cands = append(cands, cand{j, floats.Distance(rows[i], rows[j], 2)})
					}
				}
				sort.Slice(cands, func(a, b int) bool {
					if cands[a].dist != cands[b].dist {
						return cands[a].dist < cands[b].dist
					}
					return cands[a].idx < cands[b].idx
				})
				nb := make([]int, k)
				for m := range nb {
					nb[m] = cands[m].idx
				}
				out[i] = nb
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
