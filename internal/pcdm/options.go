package pcdm

import "github.com/san-kum/pcdm/internal/logger"

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used to report ignored runs and invalid input.
func WithLogger(l logger.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver registers a callback for state changes.
func WithObserver(o StateObserver) Option {
	return func(b *Backend) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// WithWorkers evaluates large inputs on up to n goroutines. Backends run on
// the calling goroutine unless this is set; zero or less uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) {
		b.workers = n
	}
}
