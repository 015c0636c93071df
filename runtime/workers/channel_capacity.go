package workers

import (
	"context"
	"fitpulse-chat/contract"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// QueueRecorder receives sampled queue depths.
type QueueRecorder interface {
	RecordQueue(name string, length, capacity int)
}

// ChannelCapacityWorker samples len and cap of the internal buses. Both reads
// are non-blocking so sampling never interferes with producers or consumers.
type ChannelCapacityWorker struct {
	log                  *slog.Logger
	channels             []NamedChannel
	recorder             QueueRecorder
	metricInterval       time.Duration
	lowCapacityThreshold int
}

// NewChannelCapacityWorker warns once free slots of a channel fall to lowCapacityThreshold percent or less.
func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel,
	recorder QueueRecorder,
	metricInterval time.Duration,
	lowCapacityThreshold int) contract.Worker {
	return &ChannelCapacityWorker{
		log:                  log,
		channels:             channels,
		recorder:             recorder,
		metricInterval:       metricInterval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		w.recorder.RecordQueue(nc.Name, length, capacity)
		if capacity > 0 && (capacity-length)*100 <= capacity*w.lowCapacityThreshold {
			w.log.Warn("Low channel capacity", "channel", nc.Name, "length", length, "capacity", capacity)
		}
	}
}
