package pcdm

import (
	"errors"
	"fmt"
)

// Domain errors for the pCDM backend. All of them surface as
// StateInvalidParameters; Backend.Err reports which one applied.
var (
	// ErrInvalidInputShape indicates east/north coordinate sequences of unequal length.
	ErrInvalidInputShape = errors.New("pcdm: input east and north coordinates must have the same size")

	// ErrEmptyInput indicates that no observation points were set.
	ErrEmptyInput = errors.New("pcdm: no observation points set")

	// ErrInvalidSourceParameters indicates source parameters that fail validation.
	ErrInvalidSourceParameters = errors.New("pcdm: invalid source parameters")

	// ErrMixedPotencySign indicates potencies with different signs.
	ErrMixedPotencySign = fmt.Errorf("%w: potencies (DV x, y, z) must have the same sign", ErrInvalidSourceParameters)

	// ErrNegativeDepth indicates a source above the surface.
	ErrNegativeDepth = fmt.Errorf("%w: depth must be a positive value", ErrInvalidSourceParameters)

	// ErrNoResults indicates results were requested before a successful run.
	ErrNoResults = errors.New("pcdm: no results available")
)
