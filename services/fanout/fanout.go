// Package fanout issues concurrent provider calls with per-provider pacing
// and failure isolation.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sourcegraph/conc"

	"anisync/config"
	"anisync/models"
	"anisync/services/provider"
)

// Result is the settled outcome of one provider's search. Every requested
// provider gets exactly one Result: a failure contributes an empty result
// list plus the provider-local error, never aborting its siblings.
type Result struct {
	Provider string
	Results  []models.ProviderResult
	Err      error
}

// IDResult is the settled outcome of one provider's fast-path lookup.
type IDResult struct {
	Provider string
	Record   *models.Record
	Err      error
}

// Fetch runs Search on every adapter concurrently and blocks until all of
// them settle. Each call is preceded by the provider's configured pacing
// delay; a configured per-provider timeout cancels only that provider's call.
func Fetch(ctx context.Context, adapters []provider.Adapter, query string, mapping config.MappingSettings) map[string]Result {
	slots := make([]Result, len(adapters))

	var wg conc.WaitGroup
	for i, adapter := range adapters {
		i, adapter := i, adapter
		wg.Go(func() {
			slots[i] = searchOne(ctx, adapter, query, mapping.Effective(adapter.Name()))
		})
	}
	wg.Wait()

	out := make(map[string]Result, len(slots))
	for _, res := range slots {
		out[res.Provider] = res
	}
	return out
}

func searchOne(ctx context.Context, adapter provider.Adapter, query string, eff config.ProviderSettings) Result {
	res := Result{Provider: adapter.Name()}

	if err := pace(ctx, time.Duration(eff.WaitMs)*time.Millisecond); err != nil {
		res.Err = err
		return res
	}

	callCtx := ctx
	if eff.TimeoutMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(eff.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	results, err := adapter.Search(callCtx, query)
	if err != nil {
		log.Printf("[fanout] %s search failed: %v", adapter.Name(), err)
		res.Err = err
		return res
	}
	log.Printf("[fanout] %s returned %d result(s) for %q in %s",
		adapter.Name(), len(results), query, time.Since(start).Round(10*time.Millisecond))
	res.Results = results
	return res
}

// FetchByID runs the fast-path lookup on every adapter exposing the Getter
// capability, skipping the rest. The returned map contains one entry per
// capable adapter.
func FetchByID(ctx context.Context, adapters []provider.Adapter, id string, mapping config.MappingSettings) map[string]IDResult {
	type slot struct {
		name    string
		adapter provider.Getter
	}
	var capable []slot
	for _, a := range adapters {
		if g, ok := a.(provider.Getter); ok {
			capable = append(capable, slot{name: a.Name(), adapter: g})
		}
	}

	slots := make([]IDResult, len(capable))

	var wg conc.WaitGroup
	for i, c := range capable {
		i, c := i, c
		wg.Go(func() {
			res := IDResult{Provider: c.name}
			eff := mapping.Effective(c.name)
			if err := pace(ctx, time.Duration(eff.WaitMs)*time.Millisecond); err != nil {
				res.Err = err
				slots[i] = res
				return
			}
			callCtx := ctx
			if eff.TimeoutMs > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, time.Duration(eff.TimeoutMs)*time.Millisecond)
				defer cancel()
			}
			record, err := c.adapter.GetByID(callCtx, id)
			if err != nil {
				log.Printf("[fanout] %s lookup of id %s failed: %v", c.name, id, err)
				res.Err = err
			} else {
				res.Record = record
			}
			slots[i] = res
		})
	}
	wg.Wait()

	out := make(map[string]IDResult, len(slots))
	for _, res := range slots {
		out[res.Provider] = res
	}
	return out
}

// Errors collapses every provider failure in a result set into one joined
// error, or nil when none failed. Callers use it for logging; a
// non-nil value never means the fan-out as a whole failed.
func Errors(results map[string]Result) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Provider, res.Err))
		}
	}
	return errors.Join(errs...)
}

// pace sleeps for the request-pacing delay, returning early if ctx ends.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
