package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jrheling/pybotz/internal/inventory"
)

type mockDiscoverer struct {
	modules map[string][]string // host address -> module names
	err     error
}

func (m *mockDiscoverer) DiscoverModules(_ context.Context, host inventory.Host) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.modules[host.Address], nil
}

type mockRegistrar struct {
	inserted []string
	existing map[string]bool // "hostID/module" already known
}

func (m *mockRegistrar) InsertModule(_ context.Context, hostID int32, moduleName string) (bool, error) {
	key := fmt.Sprintf("%d/%s", hostID, moduleName)
	if m.existing[key] {
		return false, nil
	}
	m.inserted = append(m.inserted, key)
	return true, nil
}

func TestSyncRegistersNewModules(t *testing.T) {
	inv := &inventory.Inventory{
		Hosts: []inventory.Host{
			{ID: 1, Address: "a.example.com", Protocol: inventory.ProtocolHTTP},
			{ID: 2, Address: "b.example.com", Protocol: inventory.ProtocolHTTP},
		},
	}
	disc := &mockDiscoverer{modules: map[string][]string{
		"a.example.com": {"nbHawkEnc_0", "nbExtSensor_1"},
		"b.example.com": {"nbHawkEnc_0"},
	}}
	store := &mockRegistrar{existing: map[string]bool{"1/nbHawkEnc_0": true}}

	Sync(context.Background(),
		inv,
		map[string]ModuleDiscoverer{inventory.ProtocolHTTP: disc},
		store,
		slog.New(slog.DiscardHandler),
	)

	want := []string{"1/nbExtSensor_1", "2/nbHawkEnc_0"}
	if len(store.inserted) != len(want) {
		t.Fatalf("inserted %v, want %v", store.inserted, want)
	}
	for i := range want {
		if store.inserted[i] != want[i] {
			t.Errorf("inserted[%d] = %q, want %q", i, store.inserted[i], want[i])
		}
	}
}

func TestSyncSkipsUnreachableHosts(t *testing.T) {
	inv := &inventory.Inventory{
		Hosts: []inventory.Host{
			{ID: 1, Address: "dead.example.com", Protocol: inventory.ProtocolHTTP},
		},
	}
	disc := &mockDiscoverer{err: fmt.Errorf("no route to host")}
	store := &mockRegistrar{}

	// Must not panic or abort; the host is simply skipped.
	Sync(context.Background(),
		inv,
		map[string]ModuleDiscoverer{inventory.ProtocolHTTP: disc},
		store,
		slog.New(slog.DiscardHandler),
	)

	if len(store.inserted) != 0 {
		t.Errorf("expected no inserts for unreachable host, got %v", store.inserted)
	}
}

func TestSyncSkipsUnknownProtocol(t *testing.T) {
	inv := &inventory.Inventory{
		Hosts: []inventory.Host{
			{ID: 1, Address: "a.example.com", Protocol: inventory.ProtocolSNMP},
		},
	}
	store := &mockRegistrar{}

	Sync(context.Background(),
		inv,
		map[string]ModuleDiscoverer{inventory.ProtocolHTTP: &mockDiscoverer{}},
		store,
		slog.New(slog.DiscardHandler),
	)

	if len(store.inserted) != 0 {
		t.Errorf("expected no inserts without a matching discoverer, got %v", store.inserted)
	}
}
