package dns

import (
	"encoding/binary"
	"fmt"
)

// EDNS0 payload-size constants (RFC 6891).
const (
	DefaultUDPPayloadSize     = 512  // RFC 1035 default, used when no OPT record is present
	EDNSMinUDPPayloadSize     = 512  // below this a resolver is expected to fall back to DefaultUDPPayloadSize
	EDNSDefaultUDPPayloadSize = 1232 // conservative modern default, avoids IP fragmentation
	EDNSMaxUDPPayloadSize     = 4096 // upper bound this server will honor
)

// EDNS option codes this server understands (RFC 6891, RFC 7873).
const (
	EDNSOptionCookie  uint16 = 10
	EDNSOptionPadding uint16 = 12
)

// EDNSOption is a single OPT pseudo-record option (RFC 6891 Section 6.1.2).
type EDNSOption struct {
	Code uint16
	Data []byte
}

// OPTRecord is the parsed form of an OPT pseudo-record's fixed fields plus
// its variable-length option list. The class field of the underlying
// Record carries the requestor's UDP payload size; the TTL field carries
// the extended RCODE, version, and DO bit (RFC 6891 Section 6.1.3).
type OPTRecord struct {
	UDPPayloadSize uint16
	ExtendedRCode  uint8
	Version        uint8
	DNSSECOk       bool
	Options        []EDNSOption
}

// packOPTTTL packs the extended RCODE, version, and DO bit into the
// 32-bit TTL field of an OPT record per RFC 6891 Section 6.1.3:
//
//	+0 (MSB)                +1 (LSB)
//	+---------------+---------------+
//	| EXTENDED-RCODE| VERSION       |
//	+---------------+---------------+
//	| DO|           Z               |
//	+---------------+---------------+
func packOPTTTL(extRCode, version uint8, do bool) uint32 {
	ttl := uint32(extRCode)<<24 | uint32(version)<<16
	if do {
		ttl |= 0x8000
	}
	return ttl
}

// unpackOPTTTL reverses packOPTTTL.
func unpackOPTTTL(ttl uint32) (extRCode, version uint8, do bool) {
	extRCode = uint8(ttl >> 24)
	version = uint8(ttl >> 16)
	do = ttl&0x8000 != 0
	return
}

// marshalEDNSOptions encodes an option list into OPT RDATA form:
// repeated (CODE uint16, LENGTH uint16, DATA) tuples.
func marshalEDNSOptions(opts []EDNSOption) []byte {
	size := 0
	for _, o := range opts {
		size += 4 + len(o.Data)
	}
	out := make([]byte, 0, size)
	for _, o := range opts {
		hdr := make([]byte, 4)
		binary.BigEndian.PutUint16(hdr[0:2], o.Code)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(o.Data)))
		out = append(out, hdr...)
		out = append(out, o.Data...)
	}
	return out
}

// parseEDNSOptions decodes the RDATA of an OPT record into its option list.
// Every option is returned whatever its code or length; no allow-list or
// size filter is applied, and the caller decides what to act on.
func parseEDNSOptions(rdata []byte) ([]EDNSOption, error) {
	var opts []EDNSOption
	off := 0
	for off < len(rdata) {
		if off+4 > len(rdata) {
			return nil, fmt.Errorf("%w: truncated EDNS option header", ErrDNSError)
		}
		code := binary.BigEndian.Uint16(rdata[off : off+2])
		length := binary.BigEndian.Uint16(rdata[off+2 : off+4])
		off += 4
		if off+int(length) > len(rdata) {
			return nil, fmt.Errorf("%w: truncated EDNS option data", ErrDNSError)
		}
		data := make([]byte, length)
		copy(data, rdata[off:off+int(length)])
		off += int(length)
		opts = append(opts, EDNSOption{Code: code, Data: data})
	}
	return opts, nil
}

// NewOPTRecord builds an additional-section Record carrying an OPT
// pseudo-record advertising the given UDP payload size.
func NewOPTRecord(opt OPTRecord) Record {
	return Record{
		Name:  "",
		Type:  uint16(TypeOPT),
		Class: opt.UDPPayloadSize,
		TTL:   packOPTTTL(opt.ExtendedRCode, opt.Version, opt.DNSSECOk),
		Data:  marshalEDNSOptions(opt.Options),
	}
}

// ExtractOPT scans a record list for the OPT pseudo-record and decodes it.
// A DNS message carries at most one OPT record (RFC 6891 Section 6.1.1);
// ExtractOPT returns the first one found.
func ExtractOPT(records []Record) (OPTRecord, bool, error) {
	for _, rr := range records {
		if RecordType(rr.Type) != TypeOPT {
			continue
		}
		extRCode, version, do := unpackOPTTTL(rr.TTL)
		opt := OPTRecord{
			UDPPayloadSize: rr.Class,
			ExtendedRCode:  extRCode,
			Version:        version,
			DNSSECOk:       do,
		}
		raw, ok := rr.Data.([]byte)
		if !ok {
			if rr.Data == nil {
				return opt, true, nil
			}
			return OPTRecord{}, false, fmt.Errorf("%w: OPT record data must be raw bytes", ErrDNSError)
		}
		opts, err := parseEDNSOptions(raw)
		if err != nil {
			return OPTRecord{}, false, err
		}
		opt.Options = opts
		return opt, true, nil
	}
	return OPTRecord{}, false, nil
}

// ClientMaxUDPSize returns the maximum UDP response size the requestor
// advertised, clamped to [EDNSMinUDPPayloadSize, EDNSMaxUDPPayloadSize].
// A request with no OPT record is assumed to be a plain DNS client and
// gets DefaultUDPPayloadSize.
func ClientMaxUDPSize(req Packet) int {
	opt, ok, err := ExtractOPT(req.Additionals)
	if err != nil || !ok {
		return DefaultUDPPayloadSize
	}
	size := int(opt.UDPPayloadSize)
	if size < EDNSMinUDPPayloadSize {
		return DefaultUDPPayloadSize
	}
	if size > EDNSMaxUDPPayloadSize {
		return EDNSMaxUDPPayloadSize
	}
	return size
}

// AddEDNSToRequestBytes appends a minimal OPT pseudo-record to the
// Additionals section of an already-marshaled request and returns the new
// wire bytes, incrementing ARCOUNT in the header. Used by tooling that
// needs to probe a server's EDNS support without constructing a full
// Packet.
func AddEDNSToRequestBytes(reqBytes []byte, udpPayloadSize uint16) ([]byte, error) {
	p, err := ParsePacket(reqBytes)
	if err != nil {
		return nil, err
	}
	p.Additionals = append(p.Additionals, NewOPTRecord(OPTRecord{UDPPayloadSize: udpPayloadSize}))
	return p.Marshal()
}
