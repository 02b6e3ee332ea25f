package order

import (
	"context"
	"errors"
	"fmt"
)

type compensation struct {
	name string
	run  func(ctx context.Context) error
}

// saga collects compensating actions and replays them last-first.
type saga struct {
	steps []compensation
}

func (s *saga) add(name string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, run: fn})
}

// compensate runs every step even if earlier ones fail; onStep observes each outcome.
func (s *saga) compensate(ctx context.Context, onStep func(name string, err error)) error {
	var errs error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		err := step.run(ctx)
		if onStep != nil {
			onStep(step.name, err)
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("compensate %s: %w", step.name, err))
		}
	}
	s.steps = nil
	return errs
}
