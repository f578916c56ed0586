package detection

import (
	"context"
	"errors"
	"log/slog"
)

// Chain tries detectors in order until one succeeds.
type Chain struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewChain creates a detector chain. At least one detector is required.
func NewChain(logger *slog.Logger, detectors ...Detector) (*Chain, error) {
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		detectors: detectors,
		logger:    logger.With("component", "detection.chain"),
	}, nil
}

// Detect returns the first successful result.
func (c *Chain) Detect(ctx context.Context, up *Upload) (*Result, error) {
	var errs []error

	for i, d := range c.detectors {
		res, err := d.Detect(ctx, up)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback detector succeeded", "detector_index", i)
			}
			return res, nil
		}

		errs = append(errs, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Empty input fails everywhere.
		if errors.Is(err, ErrEmptyImage) {
			return nil, err
		}

		c.logger.Warn("detector failed, trying next",
			"detector_index", i,
			"error", err,
		)
	}

	return nil, &ChainError{Errors: errs}
}

// Close closes every detector and returns the first error.
func (c *Chain) Close() error {
	var first error
	for _, d := range c.detectors {
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Verify Chain implements Detector at compile time.
var _ Detector = (*Chain)(nil)

// HealthChecker is implemented by detectors that can probe their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health reports nil if any detector in the chain is usable. Detectors
// without a health probe count as usable.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, d := range c.detectors {
		hc, ok := d.(HealthChecker)
		if !ok {
			return nil
		}
		err := hc.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckHealth probes d if it supports it.
func CheckHealth(ctx context.Context, d Detector) error {
	if hc, ok := d.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
