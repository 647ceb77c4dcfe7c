package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/singlerbl"
)

// fakeLookuper completes after a configured delay per RBL host, so
// tests can exercise the deadline/straggler behavior deterministically.
type fakeLookuper struct {
	delay  map[string]time.Duration
	listed map[string]bool
}

func (f *fakeLookuper) Lookup(ctx context.Context, ip, rblHost string) singlerbl.Result {
	if d, ok := f.delay[rblHost]; ok {
		time.Sleep(d)
	}

	if f.listed[rblHost] {
		return singlerbl.Result{Listed: cache.Listed, Response: "127.0.0.4"}
	}
	return singlerbl.Result{Listed: cache.NotListed}
}

func Test_Executor_Run_CollectsCompletedDiscardsStragglers(t *testing.T) {
	fake := &fakeLookuper{
		delay: map[string]time.Duration{
			"slow.example": 200 * time.Millisecond,
		},
		listed: map[string]bool{
			"fast.example": true,
		},
	}

	resolver := singlerbl.NewCached(fake, cache.New(nil), nil)
	exec := New(resolver, 30*time.Millisecond, nil)

	out := exec.Run(context.Background(), "1.2.3.4", []string{"fast.example", "slow.example"})

	assert.Equal(t, 2, out.TotalCount)
	assert.Equal(t, 1, out.CompletedCount)
	assert.Equal(t, 1, out.ListedCount)
	require.Len(t, out.Listed, 1)
	assert.Equal(t, "fast.example", out.Listed[0])
}

func Test_Executor_Run_AllCompleteBeforeDeadline(t *testing.T) {
	fake := &fakeLookuper{listed: map[string]bool{"a.example": true, "b.example": true}}
	resolver := singlerbl.NewCached(fake, cache.New(nil), nil)
	exec := New(resolver, 250*time.Millisecond, nil)

	out := exec.Run(context.Background(), "1.2.3.4", []string{"a.example", "b.example"})

	assert.Equal(t, 2, out.CompletedCount)
	assert.Equal(t, 2, out.ListedCount)
}

func Test_Executor_Run_ZeroListed(t *testing.T) {
	fake := &fakeLookuper{}
	resolver := singlerbl.NewCached(fake, cache.New(nil), nil)
	exec := New(resolver, 50*time.Millisecond, nil)

	out := exec.Run(context.Background(), "1.2.3.4", []string{"a.example"})

	assert.Equal(t, 0, out.ListedCount)
}

type fakeAggregateRecorder struct {
	calls  int
	listed bool
	ratio  float64
}

func (r *fakeAggregateRecorder) AggregateCompleted(listed bool, checkedRatio float64) {
	r.calls++
	r.listed = listed
	r.ratio = checkedRatio
}

func Test_Executor_Run_RecordsListedOutcomeAndRatio(t *testing.T) {
	fake := &fakeLookuper{listed: map[string]bool{"a.example": true}}
	resolver := singlerbl.NewCached(fake, cache.New(nil), nil)
	rec := &fakeAggregateRecorder{}
	exec := New(resolver, 50*time.Millisecond, rec)

	exec.Run(context.Background(), "1.2.3.4", []string{"a.example", "b.example"})

	assert.Equal(t, 1, rec.calls)
	assert.True(t, rec.listed)
	assert.Equal(t, 1.0, rec.ratio)
}

func Test_Executor_Run_RecordsStragglerRatioAtDeadline(t *testing.T) {
	fake := &fakeLookuper{delay: map[string]time.Duration{"slow.example": 200 * time.Millisecond}}
	resolver := singlerbl.NewCached(fake, cache.New(nil), nil)
	rec := &fakeAggregateRecorder{}
	exec := New(resolver, 30*time.Millisecond, rec)

	exec.Run(context.Background(), "1.2.3.4", []string{"fast.example", "slow.example"})

	assert.Equal(t, 1, rec.calls)
	assert.False(t, rec.listed)
	assert.Equal(t, 0.5, rec.ratio)
}
