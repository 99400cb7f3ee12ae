package tessellate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of tessellating one Input.
type Result struct {
	Mesh Mesh
	// Err wraps ErrDegenerate when the input was malformed. The mesh is
	// still usable.
	Err error
}

// All tessellates inputs on up to workers goroutines (workers <= 0 means no
// limit). Results are returned in input order, so reassembly never depends on
// scheduling. The only error returned is ctx's.
func All(ctx context.Context, inputs []Input, workers int) ([]Result, error) {
	results := make([]Result, len(inputs))
	if len(inputs) < 2 || workers == 1 {
		for i := range inputs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i].Mesh, results[i].Err = Tessellate(inputs[i])
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].Mesh, results[i].Err = Tessellate(inputs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
