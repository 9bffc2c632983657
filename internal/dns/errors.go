// Package dns provides DNS protocol parsing, encoding, and packet manipulation.
//
// Standards Compliance:
//
// This package implements DNS protocol features from the following RFCs:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core DNS protocol)
//   - RFC 1034: Domain Names - Concepts and Facilities (DNS concepts)
//   - RFC 3596: DNS Extensions to Support IPv6 (AAAA records)
//   - RFC 4035: DNSSEC Protocol Extensions (AD, CD flags)
//   - RFC 6891: Extension Mechanisms for DNS (EDNS, OPT records)
//
// Record Representation:
//
// Resource records share a single Record struct; the Data field's concrete
// type depends on the record's Type (raw bytes for A/AAAA/OPT, a domain
// name string for CNAME/NS/PTR, MXData for MX, SRVData for SRV). Callers
// type-assert Data after checking Type.
//
// Error Handling:
//
// Wire-format errors wrap ErrDNSError with context using fmt.Errorf("...: %w", err).
// The size and count limit checks in parsing.go return plain errors that do
// not wrap ErrDNSError.
package dns

import "errors"

var (
	// ErrDNSError is a sentinel error type for DNS protocol violations.
	// Wrap this with fmt.Errorf("context: %w", ErrDNSError) to add context.
	ErrDNSError = errors.New("dns wire error")
)
