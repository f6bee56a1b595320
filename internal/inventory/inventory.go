// Package inventory provides the read-only configuration model for the
// appliance environment: hosts, the sensor modules attached to them, and
// the sensors each module exposes, together with each sensor's recording
// policy.
package inventory

import (
	"fmt"
	"time"
)

// Appliance protocol families. Each family has its own scrape client.
const (
	ProtocolHTTP = "http"
	ProtocolSNMP = "snmp"
)

// Host is one physical monitoring appliance.
type Host struct {
	ID            int32
	Address       string
	Protocol      string
	SNMPCommunity string
}

// SensorModule is a discrete piece of hardware attached to a host (e.g.
// a sensor pod). All of a module's sensors are scraped in one round-trip.
type SensorModule struct {
	ID          int32
	HostID      int32
	ModuleName  string
	TrackData   bool
	DisplayName string
}

// Label returns the operator-facing name for the module.
func (m SensorModule) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ModuleName
}

// Sensor is one measured quantity on a module, with its recording policy.
// A PollInterval of zero means "record on every distinct change"; in that
// mode AlertThreshold is inert.
type Sensor struct {
	ID             int32
	ModuleID       int32
	Name           string
	Units          string
	TrackData      bool
	PollInterval   time.Duration
	AlertThreshold float64
}

// Inventory is the full configured environment, loaded once at startup.
type Inventory struct {
	Hosts   []Host
	Modules []SensorModule
	Sensors []Sensor
}

// Validate checks referential consistency. Any inconsistency here is
// fatal: the pool must not start against a broken configuration.
func (inv *Inventory) Validate() error {
	hosts := make(map[int32]bool, len(inv.Hosts))
	for _, h := range inv.Hosts {
		if h.Address == "" {
			return fmt.Errorf("host %d has no address", h.ID)
		}
		if h.Protocol != ProtocolHTTP && h.Protocol != ProtocolSNMP {
			return fmt.Errorf("host %d has unknown protocol %q", h.ID, h.Protocol)
		}
		hosts[h.ID] = true
	}

	modules := make(map[int32]bool, len(inv.Modules))
	for _, m := range inv.Modules {
		if !hosts[m.HostID] {
			return fmt.Errorf("sensor_module %d references missing host %d", m.ID, m.HostID)
		}
		modules[m.ID] = true
	}

	for _, s := range inv.Sensors {
		if !modules[s.ModuleID] {
			return fmt.Errorf("sensor %d (%s) references missing module %d", s.ID, s.Name, s.ModuleID)
		}
		if s.PollInterval < 0 {
			return fmt.Errorf("sensor %d (%s) has negative poll_interval", s.ID, s.Name)
		}
		if s.AlertThreshold < 0 {
			return fmt.Errorf("sensor %d (%s) has negative alert_threshold", s.ID, s.Name)
		}
	}

	return nil
}

// HostByID returns the host with the given id.
func (inv *Inventory) HostByID(id int32) (Host, bool) {
	for _, h := range inv.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return Host{}, false
}

// TrackedModules returns the modules that should be polled. Untracked
// modules are excluded entirely and never scraped.
func (inv *Inventory) TrackedModules() []SensorModule {
	tracked := make([]SensorModule, 0, len(inv.Modules))
	for _, m := range inv.Modules {
		if m.TrackData {
			tracked = append(tracked, m)
		}
	}
	return tracked
}

// TrackedSensors returns the tracked sensors belonging to one module, in
// configuration order.
func (inv *Inventory) TrackedSensors(moduleID int32) []Sensor {
	sensors := make([]Sensor, 0)
	for _, s := range inv.Sensors {
		if s.ModuleID == moduleID && s.TrackData {
			sensors = append(sensors, s)
		}
	}
	return sensors
}
