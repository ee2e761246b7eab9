package pipeline

import (
	"context"
	"sync"
)

// InlineInvoker executes stages on background goroutines of the current
// process. Used when no broker is configured and by brewctl.
type InlineInvoker struct {
	runner *Runner
	wg     sync.WaitGroup
}

func NewInlineInvoker(r *Runner) *InlineInvoker {
	inv := &InlineInvoker{runner: r}
	r.SetInvoker(inv)
	return inv
}

func (i *InlineInvoker) Enqueue(ctx context.Context, runID string, stage Stage) error {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.runner.Execute(context.WithoutCancel(ctx), runID, stage)
	}()
	return nil
}

// Wait blocks until every enqueued stage, including chained ones, is done.
func (i *InlineInvoker) Wait() { i.wg.Wait() }
