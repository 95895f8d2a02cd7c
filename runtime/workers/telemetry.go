package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-rooms/contract"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically samples the server process and the connection
// registry and logs the readings. Sampling is non-blocking with respect to
// the broadcast path: it only reads gauges.
type TelemetryWorker struct {
	log            *slog.Logger
	registry       contract.IRegistry
	metricInterval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, registry contract.IRegistry,
	metricInterval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, registry: registry, metricInterval: metricInterval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
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
			rooms, connections := w.registry.Gauge()

			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while reading process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while reading process ram usage", "err", err)
				continue
			}

			w.log.Info("Telemetry",
				"rooms", rooms,
				"connections", connections,
				"cpu_percent", cpu,
				"ram_percent", ram)
		}
	}
}
