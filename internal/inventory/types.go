// Package inventory models the container host's fleet inventory: the wire
// shape returned by the upstream HTTPS API, the domain types the resolver
// consumes, and the short-TTL cache sitting between them.
package inventory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StatusRunning is the status string a container reports while running.
const StatusRunning = "Running"

// StatusCodeRunning is the status code a container reports while running.
const StatusCodeRunning = 103

// ServiceConfigKey is the config map key holding the JSON-encoded list of
// InstanceService descriptors a container declares about itself.
const ServiceConfigKey = "user.service"

// Address is a single network address bound to an interface.
type Address struct {
	Family  string `json:"family"`
	Address string `json:"address"`
	Netmask string `json:"netmask"`
	Scope   string `json:"scope"`
}

// Resolvable reports whether this address may ever be emitted in a DNS
// response; local-scope addresses never are.
func (a Address) Resolvable() bool {
	return !strings.EqualFold(a.Scope, "local")
}

// NetworkInterface is a single named network interface on an instance.
type NetworkInterface struct {
	Addresses []Address `json:"addresses"`
	HWAddr    string    `json:"hwaddr"`
	MTU       int       `json:"mtu"`
	State     string    `json:"state"`
	Type      string    `json:"type"`
}

// InstanceService is a single user-declared service descriptor, carried
// JSON-encoded inside an instance's "user.service" config value.
type InstanceService struct {
	Name      string   `json:"name"`
	Proto     string   `json:"proto"`
	Port      int      `json:"port"`
	Tags      []string `json:"tags,omitempty"`
	Interface string   `json:"interface,omitempty"`
}

// NormalizedProto returns the service's declared protocol, defaulting to
// "_tcp" for anything that isn't exactly "_tcp" or "_udp".
func (s InstanceService) NormalizedProto() string {
	if s.Proto == "_tcp" || s.Proto == "_udp" {
		return s.Proto
	}
	return "_tcp"
}

// Instance is a single running (or stopped) container as reported by the
// upstream container host.
type Instance struct {
	Name     string                      `json:"name"`
	Location string                      `json:"location"`
	Status   string                      `json:"status"`
	Code     int                         `json:"status_code"`
	Config   map[string]string           `json:"config"`
	Network  map[string]NetworkInterface `json:"network"`
}

// Running reports whether the instance counts as up per the data model's
// invariant: status "Running" AND status code 103.
func (i Instance) Running() bool {
	return i.Status == StatusRunning && i.Code == StatusCodeRunning
}

// Services parses the instance's declared "user.service" config value.
// An absent or empty value yields an empty, non-nil slice and no error.
func (i Instance) Services() ([]InstanceService, error) {
	raw, ok := i.Config[ServiceConfigKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return []InstanceService{}, nil
	}
	var svcs []InstanceService
	if err := json.Unmarshal([]byte(raw), &svcs); err != nil {
		return nil, fmt.Errorf("inventory: invalid %s for instance %s: %w", ServiceConfigKey, i.Name, err)
	}
	return svcs, nil
}

// DefaultInterface picks eth0 if present, otherwise the first interface
// name in alphabetical order. Returns ok=false if the instance has no
// interfaces at all.
func (i Instance) DefaultInterface() (name string, iface NetworkInterface, ok bool) {
	if eth0, present := i.Network["eth0"]; present {
		return "eth0", eth0, true
	}
	names := make([]string, 0, len(i.Network))
	for n := range i.Network {
		names = append(names, n)
	}
	if len(names) == 0 {
		return "", NetworkInterface{}, false
	}
	sort.Strings(names)
	first := names[0]
	return first, i.Network[first], true
}

// InterfaceNames returns the instance's interface names in alphabetical
// (deterministic) iteration order.
func (i Instance) InterfaceNames() []string {
	names := make([]string, 0, len(i.Network))
	for n := range i.Network {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Inventory is the full upstream response body from
// GET /1.0/containers?recursion=2.
type Inventory struct {
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	StatusCode int        `json:"status_code"`
	Operation  string     `json:"operation"`
	ErrorCode  int        `json:"error_code"`
	Error      string     `json:"error"`
	Metadata   []Metadatum `json:"metadata"`
}

// Metadatum is the upstream's per-container wire shape, which nests
// network state one level deeper than the flattened Instance domain type.
type Metadatum struct {
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Code     int               `json:"status_code"`
	Config   map[string]string `json:"config"`
	State    MetadatumState    `json:"state"`
	Location string            `json:"location"`
}

// MetadatumState carries the nested network state of a Metadatum.
type MetadatumState struct {
	Network map[string]NetworkInterface `json:"network"`
}

// Instances flattens the wire Inventory into the domain Instance slice the
// rest of the system operates on.
func (inv Inventory) Instances() []Instance {
	out := make([]Instance, 0, len(inv.Metadata))
	for _, m := range inv.Metadata {
		out = append(out, Instance{
			Name:     m.Name,
			Location: m.Location,
			Status:   m.Status,
			Code:     m.Code,
			Config:   m.Config,
			Network:  m.State.Network,
		})
	}
	return out
}

// Names returns every instance name in the inventory, regardless of
// running status (the cache indexes all names; the resolver filters by
// running status at resolve time).
func (inv Inventory) Names() []string {
	out := make([]string, 0, len(inv.Metadata))
	for _, m := range inv.Metadata {
		out = append(out, m.Name)
	}
	return out
}
