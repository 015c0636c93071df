package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type queueSamples struct {
	mu      sync.Mutex
	samples map[string][2]int
}

func (q *queueSamples) RecordQueue(name string, length, capacity int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.samples[name] = [2]int{length, capacity}
}

func (q *queueSamples) get(name string) ([2]int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.samples[name]
	return s, ok
}

func TestChannelCapacityWorker_SamplesChannels(t *testing.T) {
	req := require.New(t)
	recorder := &queueSamples{samples: make(map[string][2]int)}

	// Given a bus with 3 of 4 slots used and something that is not a channel
	bus := make(chan int, 4)
	bus <- 1
	bus <- 2
	bus <- 3
	worker := NewChannelCapacityWorker(logs.GetLoggerFromLevel(slog.LevelDebug), []NamedChannel{
		{Name: "persisted", Channel: bus},
		{Name: "bogus", Channel: 42},
	}, recorder, 10*time.Millisecond, 25)

	// When the worker ticks
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then the channel depth is recorded and the bogus entry skipped
	req.Eventually(func() bool {
		s, ok := recorder.get("persisted")
		return ok && s == [2]int{3, 4}
	}, time.Second, 10*time.Millisecond)
	_, ok := recorder.get("bogus")
	req.False(ok)

	cancel()
	req.ErrorIs(<-done, context.Canceled)
}
