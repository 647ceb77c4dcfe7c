// Package aggregate implements the deadline-bounded concurrent fan-out
// executor described in spec.md §4.E: query a zone's full RBL set and
// summarise whichever lookups complete before the hard deadline.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/singlerbl"
)

// SentinelAddress is the fixed A-record address encoding "listed on
// at least one RBL" in an aggregate response.
const SentinelAddress = "127.0.0.2"

// SentinelTTL is the TTL attached to the sentinel A record.
const SentinelTTL = 300 * time.Second

// DefaultDeadline is the hard wall-clock deadline spec.md §4.E uses
// when none is configured.
const DefaultDeadline = 250 * time.Millisecond

// rblResult is one RBL's completed lookup, tagged with its host for
// TXT rendering.
type rblResult struct {
	host   string
	result singlerbl.Result
}

// Outcome is the aggregate query's result: how many of the selected
// RBLs were listed, how many completed, and how many were selected in
// total, plus the hosts of the RBLs that reported Listed in time.
type Outcome struct {
	ListedCount    int
	CompletedCount int
	TotalCount     int
	Elapsed        time.Duration
	Listed         []string // RBL hosts that reported Listed, in completion order
}

// Recorder receives the outcome of a completed aggregate run.
// metrics.Metrics implements it; tests may pass nil.
type Recorder interface {
	AggregateCompleted(listed bool, checkedRatio float64)
}

// Executor runs the fan-out over a cache-aware single-RBL resolver.
type Executor struct {
	resolver *singlerbl.CachedResolver
	deadline time.Duration
	recorder Recorder
}

// New returns an Executor with the given hard deadline (DefaultDeadline
// if zero). recorder may be nil, in which case outcomes are not counted.
func New(resolver *singlerbl.CachedResolver, deadline time.Duration, recorder Recorder) *Executor {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	return &Executor{resolver: resolver, deadline: deadline, recorder: recorder}
}

// Run implements steps 1-4 of spec.md §4.E: launch a cached lookup per
// RBL, wait for either all to complete or the deadline, and collect
// whatever finished. Stragglers are abandoned, not cancelled — their
// eventual completion may still populate the cache.
func (e *Executor) Run(ctx context.Context, ip string, rbls []string) Outcome {
	start := time.Now()

	total := len(rbls)
	resultCh := make(chan rblResult, total)

	for _, host := range rbls {
		host := host
		go func() {
			// Detached from the caller's deadline context on purpose: a
			// straggler that finishes after the deadline should still be
			// free to populate the cache.
			result := e.resolver.Check(context.WithoutCancel(ctx), ip, host)
			resultCh <- rblResult{host: host, result: result}
		}()
	}

	timer := time.NewTimer(e.deadline)
	defer timer.Stop()

	var out Outcome
	out.TotalCount = total

	for out.CompletedCount < total {
		select {
		case r := <-resultCh:
			out.CompletedCount++
			if r.result.Listed == cache.Listed {
				out.ListedCount++
				out.Listed = append(out.Listed, r.host)
			}

		case <-timer.C:
			out.Elapsed = time.Since(start)
			e.record(out)
			return out
		}
	}

	out.Elapsed = time.Since(start)
	e.record(out)
	return out
}

func (e *Executor) record(out Outcome) {
	if e.recorder == nil {
		return
	}

	var ratio float64
	if out.TotalCount > 0 {
		ratio = float64(out.CompletedCount) / float64(out.TotalCount)
	}

	e.recorder.AggregateCompleted(out.ListedCount > 0, ratio)
}

// EncodeAnswerA reports whether an aggregate A response should carry
// the sentinel record, per spec.md §4.E step 5.
func (o Outcome) EncodeAnswerA() (address string, ttl time.Duration, ok bool) {
	if o.ListedCount == 0 {
		return "", 0, false
	}
	return SentinelAddress, SentinelTTL, true
}

// EncodeAnswerTXT renders the TXT summary and per-RBL lines described
// in spec.md §4.E step 6, capping the per-RBL listing at 5 entries.
func (o Outcome) EncodeAnswerTXT() []string {
	if o.ListedCount == 0 {
		return nil
	}

	lines := make([]string, 0, 2+len(o.Listed))
	lines = append(lines, fmt.Sprintf(
		"Listed on %d/%d RBLs (%d/%d checked in %dms)",
		o.ListedCount, o.CompletedCount, o.CompletedCount, o.TotalCount, o.Elapsed.Milliseconds(),
	))

	const cap5 = 5
	shown := o.Listed
	if len(shown) > cap5 {
		shown = shown[:cap5]
	}

	for _, host := range shown {
		lines = append(lines, fmt.Sprintf("%s: LISTED", host))
	}

	if remaining := len(o.Listed) - cap5; remaining > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more (%d/%d shown)", remaining, cap5, len(o.Listed)))
	}

	return lines
}
