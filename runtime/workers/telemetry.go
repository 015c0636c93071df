package workers

import (
	"context"
	"fitpulse-chat/observability"
	"fitpulse-chat/runtime"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker refreshes the monitoring snapshot every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	presence       *runtime.Registry
	channels       *runtime.Channels
	monitoring     *observability.MonitoringManager
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	presence *runtime.Registry,
	channels *runtime.Channels,
	monitoring *observability.MonitoringManager) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		presence:       presence,
		channels:       channels,
		monitoring:     monitoring,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.refresh(p)
		}
	}
}

func (w TelemetryWorker) refresh(p *process.Process) {
	users, connections := w.presence.Counts()
	w.monitoring.Refresh(observability.PresenceSnapshot{
		OnlineUsers:    users,
		Connections:    connections,
		ActiveChannels: w.channels.Count(),
	}, selfStats(p, w.log))
}

// selfStats reads RSS and CPU usage of the running process. A failed read yields zeros.
func selfStats(p *process.Process, log *slog.Logger) observability.ProcessSnapshot {
	var snapshot observability.ProcessSnapshot
	if memInfo, err := p.MemoryInfo(); err != nil {
		log.Debug("Error while finding process ram usage", "err", err)
	} else {
		snapshot.RSSBytes = memInfo.RSS
	}
	if cpu, err := p.CPUPercent(); err != nil {
		log.Debug("Error while finding process cpu usage", "err", err)
	} else {
		snapshot.CPUPercent = cpu
	}
	return snapshot
}
