package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/engine/enginetest"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
	"github.com/fyrsmithlabs/linkrank/internal/telemetry"
)

func links(n int) []candidate.Candidate {
	titles := []string{"Installing Go", "Writing modules", "Effective Go", "Memory model", "Release notes"}
	out := make([]candidate.Candidate, n)
	for i := range out {
		out[i] = candidate.Candidate{
			ID:   i,
			Text: titles[i],
			Href: fmt.Sprintf("https://go.dev/doc/%d", i),
			Context: candidate.LinkContext{
				Position: candidate.Position{Visible: true, CenterScore: 1 - float64(i)/10},
			},
		}
	}
	return out
}

func newRanker(t *testing.T, eng *enginetest.Engine) (*orchestrator.Orchestrator, *consumer.Recorder) {
	t.Helper()
	rec := consumer.NewRecorder()
	orch, err := orchestrator.New(orchestrator.Config{
		BatchTimeout: 200 * time.Millisecond,
		HardTimeout:  time.Second,
		Protocol:     orchestrator.ModePairs,
	}, orchestrator.Deps{Engine: eng, Consumer: rec})
	require.NoError(t, err)
	return orch, rec
}

func TestAnalyze(t *testing.T) {
	orch, rec := newRanker(t, enginetest.New(enginetest.Reply{Fragments: []string{"2:9\n"}}))
	pages := page.CollaboratorFunc(func(_ context.Context, h page.Handle) ([]candidate.Candidate, error) {
		assert.Equal(t, "https://go.dev/doc/", h.URL)
		return links(3), nil
	})
	a := New(nil, pages, orch, WithLogger(zap.NewNop()))
	defer a.Close()

	res, err := a.Analyze(context.Background(), page.Handle{URL: "https://go.dev/doc/"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.RequestID)
	assert.Equal(t, consumer.StatusOK, res.Status)
	assert.Equal(t, 2, res.Candidates[0].ID)
	assert.Len(t, rec.Finals(), 1)
}

func TestAnalyze_RecordsSpan(t *testing.T) {
	orch, _ := newRanker(t, enginetest.New(enginetest.Reply{Fragments: []string{"0:9\n"}}))
	pages := page.CollaboratorFunc(func(context.Context, page.Handle) ([]candidate.Candidate, error) {
		return links(2), nil
	})
	tt := telemetry.NewTestTelemetry()
	a := New(nil, pages, orch, WithTracerSource(tt))
	defer a.Close()

	_, err := a.Analyze(context.Background(), page.Handle{URL: "https://go.dev/doc/"})
	require.NoError(t, err)

	tt.AssertSpanExists(t, "analysis.run")
	tt.AssertSpanAttribute(t, "analysis.run", "analysis.url", "https://go.dev/doc/")
	tt.AssertSpanAttribute(t, "analysis.run", "candidates", int64(2))
}

func TestAnalyze_CollaboratorFailure(t *testing.T) {
	eng := enginetest.New()
	orch, rec := newRanker(t, eng)
	pages := page.CollaboratorFunc(func(context.Context, page.Handle) ([]candidate.Candidate, error) {
		return nil, page.ErrUnsupportedContent
	})
	a := New(nil, pages, orch)
	defer a.Close()

	res, err := a.Analyze(context.Background(), page.Handle{URL: "https://go.dev/logo.png"})
	require.NoError(t, err)

	assert.Equal(t, consumer.StatusError, res.Status)
	assert.Equal(t, "could not inspect page: unsupported page content", res.Error)
	finals := rec.Finals()
	require.Len(t, finals, 1)
	assert.Equal(t, res.Error, finals[0].Error)
	assert.Equal(t, 0, eng.Calls())
}

func TestAnalyze_InspectTimeout(t *testing.T) {
	orch, rec := newRanker(t, enginetest.New())
	pages := page.CollaboratorFunc(func(ctx context.Context, _ page.Handle) ([]candidate.Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a := New(nil, pages, orch, WithInspectTimeout(20*time.Millisecond))
	defer a.Close()

	res, err := a.Analyze(context.Background(), page.Handle{URL: "https://slow.example/"})
	require.NoError(t, err)
	assert.Equal(t, consumer.StatusError, res.Status)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
	assert.Len(t, rec.Finals(), 1)
}

func TestAnalyze_CallerCancelled(t *testing.T) {
	orch, rec := newRanker(t, enginetest.New())
	pages := page.CollaboratorFunc(func(ctx context.Context, _ page.Handle) ([]candidate.Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a := New(nil, pages, orch)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, page.Handle{URL: "https://go.dev/"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.All())
}

func TestTrigger_Debounces(t *testing.T) {
	orch, rec := newRanker(t, enginetest.New(enginetest.Reply{Fragments: []string{"0:9\n"}}))
	var calls atomic.Int32
	var lastURL atomic.Value
	pages := page.CollaboratorFunc(func(_ context.Context, h page.Handle) ([]candidate.Candidate, error) {
		calls.Add(1)
		lastURL.Store(h.URL)
		return links(2), nil
	})
	a := New(nil, pages, orch, WithDebounce(30*time.Millisecond))
	defer a.Close()

	a.Trigger(page.Handle{URL: "https://go.dev/a"})
	a.Trigger(page.Handle{URL: "https://go.dev/b"})
	last := a.Trigger(page.Handle{URL: "https://go.dev/c"})
	assert.True(t, a.Pending())

	require.Eventually(t, func() bool { return len(rec.Finals()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "https://go.dev/c", lastURL.Load())
	assert.Equal(t, last, rec.Finals()[0].RequestID)
	assert.Equal(t, uint64(3), a.Manager().Latest())
}

func TestTrigger_SupersedesRunningAnalysis(t *testing.T) {
	hold := make(chan struct{})
	eng := enginetest.New(
		enginetest.Reply{Hold: hold},
		enginetest.Reply{Fragments: []string{"1:9\n"}},
	)
	orch, rec := newRanker(t, eng)
	pages := page.CollaboratorFunc(func(context.Context, page.Handle) ([]candidate.Candidate, error) {
		return links(3), nil
	})
	a := New(nil, pages, orch, WithDebounce(10*time.Millisecond))
	defer a.Close()

	first := make(chan orchestrator.Result, 1)
	go func() {
		res, err := a.Analyze(context.Background(), page.Handle{URL: "https://go.dev/old"})
		assert.NoError(t, err)
		first <- res
	}()
	require.Eventually(t, func() bool { return eng.Calls() == 1 }, time.Second, 5*time.Millisecond)

	id := a.Trigger(page.Handle{URL: "https://go.dev/new"})
	close(hold)

	assert.True(t, (<-first).Stale)
	require.Eventually(t, func() bool { return len(rec.Finals()) == 1 }, 2*time.Second, 5*time.Millisecond)
	for _, s := range rec.All() {
		assert.Equal(t, id, s.RequestID)
	}
}

func TestClose(t *testing.T) {
	orch, _ := newRanker(t, enginetest.New())
	var calls atomic.Int32
	pages := page.CollaboratorFunc(func(context.Context, page.Handle) ([]candidate.Candidate, error) {
		calls.Add(1)
		return nil, errors.New("unexpected")
	})
	a := New(nil, pages, orch, WithDebounce(time.Hour))

	a.Trigger(page.Handle{URL: "https://go.dev/"})
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.False(t, a.Pending())
	assert.Equal(t, int32(0), calls.Load())
	_, err := a.Analyze(context.Background(), page.Handle{URL: "https://go.dev/"})
	assert.ErrorIs(t, err, ErrClosed)
}
