package stats

import "context"

// Precondition decides whether a pipe should run at all. A non-empty
// reason skips the pipe (reported as skipped, never failed); an error
// fails the pipe before its first iteration.
type Precondition func(ctx context.Context) (string, error)

// pipe binds one producer to one consumer under a unique tag. The tag
// scopes the reported statistics so the same measurement name can be
// reported once per configuration variant without collision.
type pipe struct {
	tag      string
	producer Producer
	consumer *Consumer
	precond  Precondition
}

// PipeOption customizes a pipe at registration time.
type PipeOption func(*pipe)

// WithPrecondition attaches a pre-flight check evaluated before the
// pipe's first iteration.
func WithPrecondition(p Precondition) PipeOption {
	return func(pp *pipe) {
		pp.precond = p
	}
}
