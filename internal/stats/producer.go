package stats

import "context"

// Producer performs one side-effecting workload invocation and returns
// a single numeric sample. The core treats every invocation as
// independent and opaque; any failure aborts the remaining iterations
// of the owning pipe. Timeout enforcement is the producer's own
// responsibility and must surface as an error.
type Producer interface {
	Produce(ctx context.Context) (float64, error)
}

// ProducerFunc adapts a plain function to the Producer interface. Bound
// workload arguments are captured by the closure at registration time.
type ProducerFunc func(ctx context.Context) (float64, error)

// Produce invokes the wrapped function.
func (f ProducerFunc) Produce(ctx context.Context) (float64, error) {
	return f(ctx)
}
