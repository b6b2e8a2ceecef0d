package project

import (
	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/metrics"
)

type Option func(*Project)

func WithLogger(l logger.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder records every backend run of the project's models.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Project) {
		p.recorder = r
	}
}
