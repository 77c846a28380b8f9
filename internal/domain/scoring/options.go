package scoring

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(e *Evaluator) {
		e.policy = p
	}
}
