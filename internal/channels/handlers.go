package channels

import (
	"context"
	"log/slog"
)

// StartModuleStateLogger starts a goroutine that logs module down and
// recovery events as they are published by the checker pool.
func StartModuleStateLogger(ctx context.Context, events *Events, logger *slog.Logger) {
	go func() {
		for {
			select {
			case event, ok := <-events.ModuleState:
				if !ok {
					return
				}
				switch event.EventType {
				case "down":
					logger.WarnContext(ctx, "module is down",
						slog.String("module", event.Module),
						slog.String("host", event.Host),
						slog.Int("consecutive_failures", event.Failures),
					)
				case "recovered":
					logger.InfoContext(ctx, "module recovered",
						slog.String("module", event.Module),
						slog.String("host", event.Host),
					)
				}
			case <-ctx.Done():
				return
			case <-events.Done():
				return
			}
		}
	}()
}
