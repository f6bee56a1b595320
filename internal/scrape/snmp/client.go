// Package snmp scrapes readings from appliances that expose the Netbotz
// enterprise MIB over SNMP v2c. It implements the same scrape capability
// as the HTML client for hosts with the snmp protocol family.
package snmp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/jrheling/pybotz/internal/checker"
	"github.com/jrheling/pybotz/internal/inventory"
)

const defaultTimeout = 10 * time.Second

// sensorTable describes one per-type sensor table in the Netbotz MIB
// (enterprise 5528). Each table carries a value column and an enclosure
// id column; readings are matched to modules by enclosure id.
type sensorTable struct {
	sensor string // normalized sensor name, matching the HTML scraper's key space
	base   string
	scale  float64 // some tables report fixed-point values scaled by 10
	units  string
}

var sensorTables = []sensorTable{
	{sensor: "Temperature", base: ".1.3.6.1.4.1.5528.100.4.1.1.1", scale: 0.1, units: "F"},
	{sensor: "Humidity", base: ".1.3.6.1.4.1.5528.100.4.1.2.1", scale: 1, units: "%"},
	{sensor: "Dew_Point", base: ".1.3.6.1.4.1.5528.100.4.1.3.1", scale: 0.1, units: "F"},
	{sensor: "Audio", base: ".1.3.6.1.4.1.5528.100.4.1.4.1", scale: 1, units: ""},
	{sensor: "Air_Flow", base: ".1.3.6.1.4.1.5528.100.4.1.5.1", scale: 0.1, units: "ft/min"},
	{sensor: "Door_Switch", base: ".1.3.6.1.4.1.5528.100.4.1.6.1", scale: 1, units: ""},
}

// Column suffixes shared by the sensor tables.
const (
	colValue = ".2"
	colEncID = ".5"
)

// Enclosure id column of the enclosure table, used for discovery.
const oidEnclosureID = ".1.3.6.1.4.1.5528.100.2.1.1.1.1"

// Client scrapes one module's sensors with SNMP bulk walks.
type Client struct {
	logger *slog.Logger
}

// NewClient creates an SNMP scrape client.
func NewClient(logger *slog.Logger) *Client {
	return &Client{logger: logger.With("component", "snmp")}
}

// DiscoverModules walks the enclosure table and returns the enclosure
// identifiers present on the host. Used at inventory-sync time only.
func (c *Client) DiscoverModules(ctx context.Context, host inventory.Host) ([]string, error) {
	g, err := c.connect(ctx, host)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	pdus, err := g.BulkWalkAll(oidEnclosureID)
	if err != nil {
		return nil, fmt.Errorf("enclosure walk on %s failed: %w", host.Address, err)
	}

	var modules []string
	for _, pdu := range pdus {
		if id := pduString(pdu); id != "" {
			modules = append(modules, id)
		}
	}
	return modules, nil
}

// ScrapeModule walks every sensor table, keeps the rows whose enclosure
// id matches the module, and returns one reading per matching sensor.
func (c *Client) ScrapeModule(ctx context.Context, host inventory.Host, moduleName string) ([]checker.SensorReading, error) {
	g, err := c.connect(ctx, host)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	ts := time.Now()
	var readings []checker.SensorReading

	for _, table := range sensorTables {
		values, err := g.BulkWalkAll(table.base + colValue)
		if err != nil {
			return nil, fmt.Errorf("walk of %s table on %s failed: %w", table.sensor, host.Address, err)
		}
		if len(values) == 0 {
			continue
		}

		encIDs, err := g.BulkWalkAll(table.base + colEncID)
		if err != nil {
			return nil, fmt.Errorf("walk of %s enclosure column on %s failed: %w", table.sensor, host.Address, err)
		}

		// Pair value and enclosure rows by table index.
		encByIndex := make(map[string]string, len(encIDs))
		for _, pdu := range encIDs {
			encByIndex[rowIndex(pdu.Name, table.base+colEncID)] = pduString(pdu)
		}

		for _, pdu := range values {
			idx := rowIndex(pdu.Name, table.base+colValue)
			if encByIndex[idx] != moduleName {
				continue
			}
			raw := gosnmp.ToBigInt(pdu.Value)
			readings = append(readings, checker.SensorReading{
				Sensor: table.sensor,
				Value:  float64(raw.Int64()) * table.scale,
				Time:   ts,
				Units:  table.units,
			})
		}
	}

	c.logger.Debug("scraped module",
		"host", host.Address,
		"module", moduleName,
		"readings", len(readings),
	)
	return readings, nil
}

// connect opens an SNMP v2c session bounded by the caller's context.
func (c *Client) connect(ctx context.Context, host inventory.Host) (*gosnmp.GoSNMP, error) {
	community := host.SNMPCommunity
	if community == "" {
		community = "public"
	}

	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	g := &gosnmp.GoSNMP{
		Target:    host.Address,
		Port:      161,
		Version:   gosnmp.Version2c,
		Community: community,
		Timeout:   timeout,
		Context:   ctx,
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("SNMP connection to %s failed: %w", host.Address, err)
	}
	return g, nil
}

// rowIndex strips the column prefix from a PDU name, leaving the table
// row index.
func rowIndex(name, column string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, column), ".")
}

// pduString renders a string-valued PDU.
func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
