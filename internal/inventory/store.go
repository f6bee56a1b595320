package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrheling/pybotz/internal/config"
)

// Store reads the appliance configuration tables.
type Store struct {
	pool     *pgxpool.Pool
	defaults config.DefaultsConfig
}

// NewStore creates a Store. The defaults fill in sensors whose rows leave
// poll_interval or alert_threshold NULL.
func NewStore(pool *pgxpool.Pool, defaults config.DefaultsConfig) *Store {
	return &Store{pool: pool, defaults: defaults}
}

// Load reads and validates the full inventory.
func (s *Store) Load(ctx context.Context) (*Inventory, error) {
	inv := &Inventory{}

	rows, err := s.pool.Query(ctx,
		`SELECT id, address, protocol, snmp_community FROM host ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	for rows.Next() {
		var h Host
		var community *string
		if err := rows.Scan(&h.ID, &h.Address, &h.Protocol, &community); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan host row: %w", err)
		}
		if community != nil {
			h.SNMPCommunity = *community
		}
		inv.Hosts = append(inv.Hosts, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("host query failed: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, host, module_name, track_data, display_name FROM sensor_module ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor modules: %w", err)
	}
	for rows.Next() {
		var m SensorModule
		var displayName *string
		if err := rows.Scan(&m.ID, &m.HostID, &m.ModuleName, &m.TrackData, &displayName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sensor_module row: %w", err)
		}
		if displayName != nil {
			m.DisplayName = *displayName
		}
		inv.Modules = append(inv.Modules, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sensor_module query failed: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, module, sensor_name, units, track_data, poll_interval, alert_threshold
		 FROM sensor ORDER BY module, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	for rows.Next() {
		var sn Sensor
		var units *string
		var interval *int32
		var threshold *float64
		if err := rows.Scan(&sn.ID, &sn.ModuleID, &sn.Name, &units, &sn.TrackData, &interval, &threshold); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sensor row: %w", err)
		}
		if units != nil {
			sn.Units = *units
		}
		if interval != nil {
			sn.PollInterval = time.Duration(*interval) * time.Second
		} else {
			sn.PollInterval = s.defaults.GetPollInterval()
		}
		if threshold != nil {
			sn.AlertThreshold = *threshold
		} else {
			sn.AlertThreshold = s.defaults.AlertThresholdPct
		}
		inv.Sensors = append(inv.Sensors, sn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sensor query failed: %w", err)
	}

	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("inventory validation failed: %w", err)
	}

	return inv, nil
}

// InsertModule registers a newly discovered module. Discovered modules
// start untracked so an operator can curate them before polling begins.
// Returns true if a row was inserted, false if the module already existed.
func (s *Store) InsertModule(ctx context.Context, hostID int32, moduleName string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO sensor_module (host, module_name, track_data)
		 VALUES ($1, $2, FALSE)
		 ON CONFLICT (host, module_name) DO NOTHING`,
		hostID, moduleName)
	if err != nil {
		return false, fmt.Errorf("failed to insert module %q for host %d: %w", moduleName, hostID, err)
	}
	return tag.RowsAffected() > 0, nil
}
