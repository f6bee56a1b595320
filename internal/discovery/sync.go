// Package discovery reconciles the configured inventory with the modules
// actually attached to each host. It runs at configuration-sync time
// only, never as part of the per-tick check cycle.
package discovery

import (
	"context"
	"log/slog"

	"github.com/jrheling/pybotz/internal/inventory"
)

// ModuleDiscoverer identifies the modules currently present on a host.
// Implemented per appliance family alongside the scrape capability.
type ModuleDiscoverer interface {
	DiscoverModules(ctx context.Context, host inventory.Host) ([]string, error)
}

// ModuleRegistrar records a newly seen module in the configuration store.
type ModuleRegistrar interface {
	InsertModule(ctx context.Context, hostID int32, moduleName string) (bool, error)
}

// Sync discovers the modules on every configured host and registers any
// the store doesn't know yet. New modules start untracked, so syncing
// never changes what gets polled until an operator enables them.
// Unreachable hosts are logged and skipped; they don't abort the sync.
func Sync(
	ctx context.Context,
	inv *inventory.Inventory,
	discoverers map[string]ModuleDiscoverer,
	store ModuleRegistrar,
	logger *slog.Logger,
) {
	logger = logger.With("component", "discovery")

	for _, host := range inv.Hosts {
		disc, ok := discoverers[host.Protocol]
		if !ok {
			logger.Warn("no discoverer for host protocol, skipping",
				"host", host.Address,
				"protocol", host.Protocol,
			)
			continue
		}

		modules, err := disc.DiscoverModules(ctx, host)
		if err != nil {
			logger.Warn("module discovery failed, skipping host",
				"host", host.Address,
				"error", err,
			)
			continue
		}

		added := 0
		for _, name := range modules {
			inserted, err := store.InsertModule(ctx, host.ID, name)
			if err != nil {
				logger.Error("failed to register discovered module",
					"host", host.Address,
					"module", name,
					"error", err,
				)
				continue
			}
			if inserted {
				added++
				logger.Info("registered new module (untracked until enabled)",
					"host", host.Address,
					"module", name,
				)
			}
		}

		logger.Info("host discovery complete",
			"host", host.Address,
			"modules_found", len(modules),
			"modules_added", added,
		)
	}
}
