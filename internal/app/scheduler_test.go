package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanSource struct {
	jobs chan model.SettlementJob
	errs chan error
}

func (s *chanSource) Dequeue(ctx context.Context, timeout time.Duration) (*model.SettlementJob, error) {
	select {
	case job := <-s.jobs:
		return &job, nil
	case err := <-s.errs:
		return nil, err
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (p *recordingProcessor) Process(_ context.Context, job model.SettlementJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, job.ID)
	return p.err
}

func (p *recordingProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestSchedulerProcessesQueuedJobs(t *testing.T) {
	source := &chanSource{jobs: make(chan model.SettlementJob, 3), errs: make(chan error, 1)}
	processor := &recordingProcessor{err: errors.New("logged only")}
	s := NewScheduler(source, processor, 10*time.Millisecond, zap.NewNop())

	source.jobs <- model.SettlementJob{ID: "a"}
	source.errs <- errors.New("redis hiccup")
	source.jobs <- model.SettlementJob{ID: "b"}

	s.Start(context.Background())
	require.Eventually(t, func() bool { return len(processor.ids()) == 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.ElementsMatch(t, []string{"a", "b"}, processor.ids())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	source := &chanSource{jobs: make(chan model.SettlementJob), errs: make(chan error)}
	s := NewScheduler(source, &recordingProcessor{}, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
