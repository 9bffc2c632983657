// Package resolver implements the DNS handler (C5) and record resolution
// (C4) for lexa: turning a classified query plus a cached inventory
// snapshot into DNS answer records, and wrapping that in the
// internal/resolvers.Resolver contract the transport servers depend on.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/kaidyth/lexa/internal/dns"
	"github.com/kaidyth/lexa/internal/inventory"
	"github.com/kaidyth/lexa/internal/query"
	"github.com/kaidyth/lexa/internal/resolvers"
)

// RecordTTL is the fixed TTL on every record this resolver emits (§4.4).
const RecordTTL = 3

// LookupHost resolves a cluster node's location hostname into IP
// addresses; swappable in tests for net.DefaultResolver.LookupIPAddr.
type LookupHost func(ctx context.Context, host string) ([]net.IPAddr, error)

// Lexa implements resolvers.Resolver for the lexa inventory DNS grammar.
// It owns no network listeners; Resolve is pure given a fresh (or
// freshly-refilled) inventory snapshot.
type Lexa struct {
	Suffix string
	Cache  *inventory.Cache
	Load   inventory.Loader
	Logger *slog.Logger

	// LookupHost is used for Cluster resolution's OS hostname lookup.
	// Defaults to net.DefaultResolver.LookupIPAddr if nil.
	LookupHost LookupHost

	deprecationWarnOnce sync.Once
}

// Resolve implements resolvers.Resolver. It is the DNS Handler (C5):
// suffix-ancestry check, classification (C3), resolution (C4), and
// authoritative response construction. Any panic anywhere downstream is
// recovered and converted into the same SERVFAIL path the caller already
// uses for a returned error.
func (l *Lexa) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (res resolvers.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if l.Logger != nil {
				l.Logger.Error("recovered panic resolving query", "panic", rec)
			}
			res = resolvers.Result{}
			err = fmt.Errorf("resolver: panic: %v", rec)
		}
	}()

	// §4.5 pre-checks 1/2: opcode must be QUERY and the message must be a
	// question, not a response. Both are authoritative SERVFAIL, not
	// FORMERR, so they're enforced here rather than at the wire-parsing
	// layer (internal/dns.ParseRequestBounded only rejects malformed
	// bytes).
	if dns.IsResponse(req.Header.Flags) {
		if l.Logger != nil {
			l.Logger.Error("rejecting query: message is a response (QR set)", "id", req.Header.ID)
		}
		return resolvers.Result{}, fmt.Errorf("resolver: message has QR set, not a query")
	}
	if opcode := dns.Opcode(req.Header.Flags); opcode != 0 {
		if l.Logger != nil {
			l.Logger.Error("rejecting query: unsupported opcode", "opcode", opcode)
		}
		return resolvers.Result{}, fmt.Errorf("resolver: unsupported opcode %d, only QUERY is supported", opcode)
	}

	if len(req.Questions) != 1 {
		return resolvers.Result{}, fmt.Errorf("resolver: expected exactly one question, got %d", len(req.Questions))
	}
	q := req.Questions[0]

	if !isAncestor(q.Name, l.Suffix) {
		if l.Logger != nil {
			l.Logger.Warn("rejecting query: outside configured zone", "qname", q.Name, "suffix", l.Suffix)
		}
		return resolvers.Result{}, fmt.Errorf("resolver: %q outside zone %q", q.Name, l.Suffix)
	}

	classified, err := query.Classify(q.Name, l.Suffix, q.Type)
	if err != nil {
		return resolvers.Result{}, fmt.Errorf("resolver: classify: %w", err)
	}

	if classified.Deprecated {
		l.warnDeprecated(ctx)
	}

	inv, err := l.Cache.GetOrRefill(ctx, l.loader())
	if err != nil {
		// Upstream unavailable: NOERROR-empty, not SERVFAIL (§7).
		if l.Logger != nil {
			l.Logger.Warn("inventory refill failed, answering empty", "err", err)
		}
		return l.noerrorEmpty(req), nil
	}

	records, err := l.resolveQuery(ctx, classified, q, inv)
	if err != nil {
		return resolvers.Result{}, fmt.Errorf("resolver: resolve: %w", err)
	}

	respBytes, err := l.buildResponse(req, records)
	if err != nil {
		return resolvers.Result{}, fmt.Errorf("resolver: marshal response: %w", err)
	}

	return resolvers.Result{ResponseBytes: respBytes, Source: "resolver"}, nil
}

// Close satisfies resolvers.Resolver. Lexa holds no closeable resources of
// its own; the upstream HTTP client and inventory cache outlive individual
// resolve calls and are owned by the runner that constructs them.
func (l *Lexa) Close() error {
	return nil
}

func (l *Lexa) loader() inventory.Loader {
	if l.Load != nil {
		return l.Load
	}
	return func(ctx context.Context) (*inventory.Inventory, error) {
		return &inventory.Inventory{}, nil
	}
}

func (l *Lexa) warnDeprecated(ctx context.Context) {
	l.deprecationWarnOnce.Do(func() {
		if l.Logger != nil {
			l.Logger.WarnContext(ctx, "deprecated 'interface' label used in query; use 'if' instead")
		}
	})
}

func (l *Lexa) lookupHost() LookupHost {
	if l.LookupHost != nil {
		return l.LookupHost
	}
	return net.DefaultResolver.LookupIPAddr
}

// isAncestor reports whether suffix, interpreted as a DNS name, is an
// ancestor of (or equal to) qname.
func isAncestor(qname, suffix string) bool {
	name := dns.NormalizeName(strings.TrimSpace(qname))
	suf := strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")
	if suf == "" {
		return true
	}
	return name == suf || strings.HasSuffix(name, "."+suf)
}

func (l *Lexa) noerrorEmpty(req dns.Packet) resolvers.Result {
	b, err := l.buildResponse(req, nil)
	if err != nil {
		return resolvers.Result{}
	}
	return resolvers.Result{ResponseBytes: b, Source: "empty"}
}

func (l *Lexa) buildResponse(req dns.Packet, records []dns.Record) ([]byte, error) {
	flags := dns.QRFlag | dns.AAFlag
	flags |= req.Header.Flags & dns.RDFlag

	resp := dns.Packet{
		Header: dns.Header{
			ID:    req.Header.ID,
			Flags: flags,
		},
		Questions: req.Questions,
		Answers:   records,
	}
	return resp.Marshal()
}

// selectInstances returns the running instances matching the classified
// query's container scoping, in deterministic (name-sorted) order.
func (l *Lexa) selectInstances(cq query.ClassifiedQuery, inv *inventory.Inventory) ([]inventory.Instance, error) {
	all := inv.Instances()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if cq.Kind == query.KindService && cq.ContainerlessService {
		out := make([]inventory.Instance, 0, len(all))
		for _, inst := range all {
			if inst.Running() {
				out = append(out, inst)
			}
		}
		return out, nil
	}

	g, err := glob.Compile(cq.ContainerGlob)
	if err != nil {
		return nil, fmt.Errorf("invalid container glob %q: %w", cq.ContainerGlob, err)
	}

	out := make([]inventory.Instance, 0, len(all))
	for _, inst := range all {
		if inst.Running() && g.Match(inst.Name) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (l *Lexa) resolveQuery(ctx context.Context, cq query.ClassifiedQuery, q dns.Question, inv *inventory.Inventory) ([]dns.Record, error) {
	instances, err := l.selectInstances(cq, inv)
	if err != nil {
		return nil, err
	}

	switch cq.Kind {
	case query.KindContainer:
		return l.resolveContainer(instances, q, l.Suffix), nil
	case query.KindInterface:
		return l.resolveInterface(instances, cq.Interface, q, l.Suffix), nil
	case query.KindCluster:
		return l.resolveCluster(ctx, instances, cq, q, l.Suffix)
	case query.KindService:
		return l.resolveService(cq, instances, q, l.Suffix), nil
	default:
		return nil, nil
	}
}

// familyForQType maps a DNS question type to the address family it wants.
func familyForQType(qtype uint16) (string, bool) {
	switch dns.RecordType(qtype) {
	case dns.TypeA:
		return "inet", true
	case dns.TypeAAAA:
		return "inet6", true
	default:
		return "", false
	}
}

func addressRecord(owner string, qtype uint16, addr string) (dns.Record, bool) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return dns.Record{}, false
	}
	switch dns.RecordType(qtype) {
	case dns.TypeA:
		v4 := ip.To4()
		if v4 == nil {
			return dns.Record{}, false
		}
		return dns.Record{Name: owner, Type: qtype, Class: uint16(dns.ClassIN), TTL: RecordTTL, Data: []byte(v4)}, true
	case dns.TypeAAAA:
		v6 := ip.To16()
		if v6 == nil || ip.To4() != nil {
			return dns.Record{}, false
		}
		return dns.Record{Name: owner, Type: qtype, Class: uint16(dns.ClassIN), TTL: RecordTTL, Data: []byte(v6)}, true
	default:
		return dns.Record{}, false
	}
}

func (l *Lexa) resolveContainer(instances []inventory.Instance, q dns.Question, suffix string) []dns.Record {
	family, ok := familyForQType(q.Type)
	if !ok {
		return nil
	}

	var out []dns.Record
	for _, inst := range instances {
		_, iface, ok := inst.DefaultInterface()
		if !ok {
			continue
		}
		owner := inst.Name + "." + suffix + "."
		out = append(out, emitAddresses(iface, family, owner, q.Type)...)
	}
	return out
}

func (l *Lexa) resolveInterface(instances []inventory.Instance, ifaceName string, q dns.Question, suffix string) []dns.Record {
	family, ok := familyForQType(q.Type)
	if !ok {
		return nil
	}

	var out []dns.Record
	for _, inst := range instances {
		iface, present := inst.Network[ifaceName]
		if !present {
			continue
		}
		owner := ifaceName + ".if." + inst.Name + "." + suffix + "."
		out = append(out, emitAddresses(iface, family, owner, q.Type)...)
	}
	return out
}

func emitAddresses(iface inventory.NetworkInterface, family string, owner string, qtype uint16) []dns.Record {
	var out []dns.Record
	for _, addr := range iface.Addresses {
		if !addr.Resolvable() {
			continue
		}
		if !strings.EqualFold(addr.Family, family) {
			continue
		}
		if rr, ok := addressRecord(owner, qtype, addr.Address); ok {
			out = append(out, rr)
		}
	}
	return out
}

func (l *Lexa) resolveCluster(ctx context.Context, instances []inventory.Instance, cq query.ClassifiedQuery, q dns.Question, suffix string) ([]dns.Record, error) {
	var out []dns.Record

	for _, inst := range instances {
		if inst.Location == "" {
			continue
		}

		if dns.RecordType(q.Type) == dns.TypeCNAME {
			out = append(out, dns.Record{
				Name:  q.Name,
				Type:  q.Type,
				Class: uint16(dns.ClassIN),
				TTL:   RecordTTL,
				Data:  inst.Location + ".",
			})
			continue
		}

		family, ok := familyForQType(q.Type)
		if !ok {
			continue
		}

		if cq.ClusterFQDNPrefix == nil {
			addrs, err := l.lookupHost()(ctx, inst.Location)
			if err != nil {
				continue
			}
			for _, a := range addrs {
				if rr, ok := addressRecord(q.Name, q.Type, a.IP.String()); ok {
					if (family == "inet" && a.IP.To4() != nil) || (family == "inet6" && a.IP.To4() == nil) {
						out = append(out, rr)
					}
				}
			}
			continue
		}

		if *cq.ClusterFQDNPrefix == inst.Location {
			_, iface, ok := inst.DefaultInterface()
			if !ok {
				continue
			}
			out = append(out, emitAddresses(iface, family, q.Name, q.Type)...)
		}
	}

	return out, nil
}

// resolveService implements §4.4.5: only the RFC-2782 shape resolves;
// the Tagged shape is deliberately unimplemented. Emitted SRV records use
// the original question name as owner, per standard SRV answer shape.
func (l *Lexa) resolveService(cq query.ClassifiedQuery, instances []inventory.Instance, q dns.Question, suffix string) []dns.Record {
	if cq.Shape != query.ShapeRFC2782 {
		return nil
	}

	wantProto := cq.Protocol
	if wantProto == "" {
		wantProto = "_tcp"
	}
	wantService := strings.TrimPrefix(cq.ServiceName, "_")

	var out []dns.Record
	for _, inst := range instances {
		svcs, err := inst.Services()
		if err != nil {
			continue
		}
		ifaceName, _, ok := inst.DefaultInterface()
		if !ok {
			continue
		}
		targetName := ifaceName + ".if." + inst.Name + "." + suffix + "."

		for _, s := range svcs {
			if s.NormalizedProto() != wantProto {
				continue
			}
			var matched bool
			switch {
			case cq.Tag != "":
				matched = containsString(s.Tags, cq.Tag)
			case cq.ServiceName != "":
				matched = s.Name == wantService
			}
			if !matched {
				continue
			}
			out = append(out, dns.Record{
				Name:  q.Name,
				Type:  uint16(dns.TypeSRV),
				Class: uint16(dns.ClassIN),
				TTL:   RecordTTL,
				Data: dns.SRVData{
					Priority: 1,
					Weight:   1,
					Port:     uint16(s.Port),
					Target:   targetName,
				},
			})
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
