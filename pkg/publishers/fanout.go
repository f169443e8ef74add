package publishers

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const maxParallelPublishes = 8

// Fanout delivers each event to every publisher in parallel.
type Fanout struct {
	publishers []Publisher
}

// NewFanout drops nil entries from pubs.
func NewFanout(pubs []Publisher) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			cp = append(cp, p)
		}
	}
	return &Fanout{publishers: cp}
}

// Publish returns the number of publishers that accepted evt together with
// the joined errors of the rest. One failing sink never blocks the others.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	errs := make([]error, len(f.publishers))
	var g errgroup.Group
	g.SetLimit(maxParallelPublishes)
	for i, p := range f.publishers {
		g.Go(func() error {
			if err := p.Publish(ctx, evt); err != nil {
				errs[i] = fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	delivered := 0
	for _, err := range errs {
		if err == nil {
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close closes every publisher and joins their errors.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}

func closeAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", p.Type(), p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
