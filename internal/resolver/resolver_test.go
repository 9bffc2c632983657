package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaidyth/lexa/internal/dns"
	"github.com/kaidyth/lexa/internal/inventory"
)

func testInventory() *inventory.Inventory {
	return &inventory.Inventory{Metadata: []inventory.Metadatum{
		{
			Name:     "web",
			Status:   "Running",
			Code:     103,
			Location: "node-1.cluster.example.com",
			Config: map[string]string{
				"user.service": `[{"name":"http","proto":"_tcp","port":80,"tags":["edge"]}]`,
			},
			State: inventory.MetadatumState{Network: map[string]inventory.NetworkInterface{
				"eth0": {Addresses: []inventory.Address{
					{Family: "inet", Address: "10.0.0.5", Scope: "global"},
					{Family: "inet6", Address: "fd00::5", Scope: "global"},
				}},
				"eth1": {Addresses: []inventory.Address{
					{Family: "inet", Address: "192.168.1.5", Scope: "global"},
				}},
			}},
		},
		{
			Name:   "stopped",
			Status: "Stopped",
			Code:   102,
			State:  inventory.MetadatumState{Network: map[string]inventory.NetworkInterface{}},
		},
	}}
}

func buildQuery(id uint16, name string, qtype uint16) dns.Packet {
	return dns.Packet{
		Header:    dns.Header{ID: id, Flags: 0},
		Questions: []dns.Question{{Name: name, Type: qtype, Class: uint16(dns.ClassIN)}},
	}
}

func newTestResolver(t *testing.T, inv *inventory.Inventory) *Lexa {
	t.Helper()
	cache := inventory.NewCache(time.Minute)
	_, err := cache.GetOrRefill(context.Background(), func(ctx context.Context) (*inventory.Inventory, error) {
		return inv, nil
	})
	require.NoError(t, err)
	return &Lexa{Suffix: "lexa", Cache: cache}
}

func TestResolveContainerA(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(1, "web.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "web.lexa", resp.Answers[0].Name)
	assert.Equal(t, net.ParseIP("10.0.0.5").To4(), net.IP(resp.Answers[0].Data.([]byte)))
}

func TestResolveInterfaceRestrictsToNamed(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(2, "eth1.if.web.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "eth1.if.web.lexa", resp.Answers[0].Name)
}

func TestResolveClusterCNAME(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(3, "web.cluster.lexa.", uint16(dns.TypeCNAME))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "node-1.cluster.example.com", resp.Answers[0].Data.(string))
}

func TestResolveClusterSelfReference(t *testing.T) {
	r := newTestResolver(t, testInventory())
	r.LookupHost = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		t.Fatal("self-reference case should not hit the OS resolver")
		return nil, nil
	}
	req := buildQuery(4, "node-1.cluster.example.com.cluster.web.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "node-1.cluster.example.com.cluster.web.lexa", resp.Answers[0].Name)
}

func TestResolveClusterAddressLookup(t *testing.T) {
	r := newTestResolver(t, testInventory())
	r.LookupHost = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		assert.Equal(t, "node-1.cluster.example.com", host)
		return []net.IPAddr{{IP: net.ParseIP("172.16.0.9")}}, nil
	}
	req := buildQuery(5, "web.cluster.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "web.cluster.lexa", resp.Answers[0].Name)
}

func TestResolveServiceRFC2782ByName(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(6, "_http._tcp.service.lexa.", uint16(dns.TypeSRV))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	srv := resp.Answers[0].Data.(dns.SRVData)
	assert.Equal(t, uint16(80), srv.Port)
	assert.Equal(t, "eth0.if.web.lexa", srv.Target)
}

func TestResolveServiceRFC2782ByTag(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(7, "edge._tcp.service.lexa.", uint16(dns.TypeSRV))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
}

func TestResolveServiceTaggedShapeReturnsEmpty(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(8, "edge._tcp.service.lexa.", uint16(dns.TypeTXT))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Empty(t, resp.Answers)
}

func TestResolveOutsideZoneErrors(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(9, "web.other.", uint16(dns.TypeA))

	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestResolveInvalidGlobErrors(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(10, "[.lexa.", uint16(dns.TypeA))

	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestResolveUpstreamUnavailableReturnsNoErrorEmpty(t *testing.T) {
	cache := inventory.NewCache(time.Nanosecond)
	r := &Lexa{
		Suffix: "lexa",
		Cache:  cache,
		Load: func(ctx context.Context) (*inventory.Inventory, error) {
			return nil, assert.AnError
		},
	}
	req := buildQuery(11, "web.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, dns.RCodeNoError, dns.RCodeFromFlags(resp.Header.Flags))
	assert.Empty(t, resp.Answers)
}

func TestResolveRecoversFromPanic(t *testing.T) {
	cache := inventory.NewCache(time.Minute)
	_, err := cache.GetOrRefill(context.Background(), func(ctx context.Context) (*inventory.Inventory, error) {
		return testInventory(), nil
	})
	require.NoError(t, err)

	r := &Lexa{
		Suffix: "lexa",
		Cache:  cache,
		LookupHost: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			panic("boom")
		},
	}
	req := buildQuery(12, "web.cluster.lexa.", uint16(dns.TypeA))

	_, err = r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestResolveStoppedInstanceExcluded(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(13, "stopped.lexa.", uint16(dns.TypeA))

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Empty(t, resp.Answers)
}

func TestResolveNonQueryOpcodeErrors(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(14, "web.lexa.", uint16(dns.TypeA))
	// IQuery: opcode 1 occupies bits 14-11 of the flags field.
	req.Header.Flags |= 1 << 11

	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestResolveResponseFlaggedMessageErrors(t *testing.T) {
	r := newTestResolver(t, testInventory())
	req := buildQuery(15, "web.lexa.", uint16(dns.TypeA))
	req.Header.Flags |= dns.QRFlag

	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}
