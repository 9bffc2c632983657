package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kaidyth/lexa/internal/dns"
)

// ErrOutsideZone is returned when a question name is not a descendant of
// the configured zone suffix.
var ErrOutsideZone = errors.New("query: name outside configured zone")

// ErrInvalidZone is returned when, after stripping the suffix, no labels
// remain to classify.
var ErrInvalidZone = errors.New("query: invalid zone")

// RecordTypeSRV is the DNS question type value for SRV records
// (dns.TypeSRV), kept as its own constant so callers that only have the
// raw wire value (e.g. a question parsed off the network) don't need to
// convert through dns.RecordType first.
const RecordTypeSRV = uint16(dns.TypeSRV)

// Classify strips qname of its trailing dot and the configured suffix,
// then classifies the remaining labels per the zone's query grammar.
// qtype is the DNS question type (e.g. dns.TypeSRV), used only to decide
// the Service record-type shaping.
func Classify(qname, suffix string, qtype uint16) (ClassifiedQuery, error) {
	name := dns.NormalizeName(strings.TrimSpace(qname))
	suf := strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")

	prefix, ok := stripSuffix(name, suf)
	if !ok {
		return ClassifiedQuery{}, fmt.Errorf("%w: %s", ErrOutsideZone, qname)
	}
	if prefix == "" {
		return ClassifiedQuery{}, fmt.Errorf("%w: %s", ErrInvalidZone, qname)
	}

	labels := strings.Split(prefix, ".")
	return classifyLabels(labels, qtype)
}

// stripSuffix removes "."+suffix (or an exact match) from name, reporting
// whether name was actually a descendant of suffix.
func stripSuffix(name, suffix string) (string, bool) {
	if suffix == "" {
		return name, true
	}
	if name == suffix {
		return "", true
	}
	if strings.HasSuffix(name, "."+suffix) {
		return name[:len(name)-len(suffix)-1], true
	}
	return "", false
}

func classifyLabels(labels []string, qtype uint16) (ClassifiedQuery, error) {
	n := len(labels)

	if n == 1 {
		return ClassifiedQuery{Kind: KindContainer, ContainerGlob: labels[0]}, nil
	}

	last := labels[n-1]
	if last == "service" {
		return classifyService(labels, qtype), nil
	}
	if n >= 2 && labels[n-2] == "service" {
		return classifyService(labels, qtype), nil
	}

	// Bare cluster form "<container>.cluster": the sentinel is the last
	// label and the container is the first.
	if n == 2 && last == "cluster" {
		return ClassifiedQuery{Kind: KindCluster, ContainerGlob: labels[0]}, nil
	}

	penultimate := labels[n-2]
	switch penultimate {
	case "cluster":
		var prefix *string
		if n >= 3 {
			s := strings.Join(labels[:n-2], ".")
			prefix = &s
		}
		return ClassifiedQuery{
			Kind:              KindCluster,
			ClusterFQDNPrefix: prefix,
			ContainerGlob:     labels[n-1],
		}, nil
	case "if":
		return ClassifiedQuery{Kind: KindInterface, Interface: labels[0], ContainerGlob: labels[n-1]}, nil
	case "interface":
		return ClassifiedQuery{Kind: KindInterface, Interface: labels[0], ContainerGlob: labels[n-1], Deprecated: true}, nil
	default:
		return ClassifiedQuery{Kind: KindContainer, ContainerGlob: labels[n-1]}, nil
	}
}

// classifyService implements §4.3's Service classification, covering both
// the containerless form (p[-1] == "service") and the container-bound
// form (p[-2] == "service").
func classifyService(p []string, qtype uint16) ClassifiedQuery {
	n := len(p)

	q := ClassifiedQuery{Kind: KindService}

	var serviceName, extra *string

	if p[n-1] == "service" {
		q.ContainerlessService = true
		if n >= 2 {
			serviceName = &p[n-2]
		}
		if n == 3 {
			extra = &p[n-3]
		}
	} else {
		// Container-bound: p[-2] == "service", container is p[-1].
		q.ContainerGlob = p[n-1]
		if n >= 3 {
			serviceName = &p[n-3]
		}
		if n >= 4 {
			extra = &p[n-4]
		}
	}

	if qtype == RecordTypeSRV {
		q.Shape = ShapeRFC2782
		if extra != nil && strings.HasPrefix(*extra, "_") {
			if serviceName != nil {
				q.Protocol = *serviceName
			}
			q.ServiceName = *extra
			q.Tag = ""
		} else {
			if extra != nil {
				q.Tag = *extra
			}
			if serviceName != nil {
				q.Protocol = *serviceName
			}
			q.ServiceName = ""
		}
	} else {
		q.Shape = ShapeTagged
		if serviceName != nil {
			q.ServiceName = *serviceName
		}
		if extra != nil {
			q.Tag = *extra
		}
	}

	return q
}
