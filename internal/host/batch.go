package host

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

// RunnerFactory builds the Runner a batch worker uses. Each worker gets its
// own Runner, and so its own plugin instance.
type RunnerFactory func() (*Runner, error)

// RunBatch processes inputs on up to workers parallel plugin instances and
// returns the outputs in input order. It fails only when a worker cannot be
// built; plugin failures are reported in the outputs. Workers release their
// instance when the batch ends.
func RunBatch(ctx context.Context, newRunner RunnerFactory, inputs []*plugin.Input, workers int) ([]plugin.Output, error) {
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, len(inputs))

	outputs := make([]plugin.Output, len(inputs))
	done := make([]bool, len(inputs))
	jobs := make(chan int)

	runners := make([]*Runner, 0, workers)
	for i := 0; i < workers; i++ {
		r, err := newRunner()
		if err != nil {
			for _, r := range runners {
				_ = r.Release()
			}
			return nil, errors.Wrapf(err, "start worker %d", i)
		}
		runners = append(runners, r)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range inputs {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for _, r := range runners {
		g.Go(func() error {
			defer r.Release()
			for i := range jobs {
				outputs[i] = r.Run(gctx, inputs[i])
				done[i] = true
			}
			return nil
		})
	}

	_ = g.Wait()

	// Inputs never handed out because ctx ended
	for i := range outputs {
		if !done[i] {
			outputs[i] = plugin.Failf("invocation cancelled: %v", context.Cause(ctx))
		}
	}

	return outputs, nil
}
