// Package query classifies a DNS question name, stripped of its zone
// suffix, into one of the four lookup shapes the resolver understands:
// Container, Interface, Cluster, or Service.
package query

// Kind identifies which shape a classified query falls into.
type Kind int

const (
	// KindContainer looks up a single container by name (or glob).
	KindContainer Kind = iota
	// KindInterface restricts a container lookup to one named interface.
	KindInterface
	// KindCluster resolves the host node a container (or the zone itself) runs on.
	KindCluster
	// KindService resolves an SRV (or, unimplemented, Tagged) service lookup.
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindInterface:
		return "interface"
	case KindCluster:
		return "cluster"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// ServiceShape distinguishes the two label layouts a Service query can
// take: the RFC 2782 SRV shape (_service._proto form, only meaningful for
// SRV queries) and the Tagged shape (anything else), which this resolver
// deliberately leaves unimplemented.
type ServiceShape int

const (
	// ShapeRFC2782 is the standard SRV record naming convention.
	ShapeRFC2782 ServiceShape = iota
	// ShapeTagged is a non-SRV-shaped service query; always resolves empty.
	ShapeTagged
)

// ClassifiedQuery is the result of splitting a question name's labels
// into one of the four classification shapes.
type ClassifiedQuery struct {
	Kind Kind

	// ContainerGlob is the glob pattern (or literal name) identifying
	// which container(s) this query is about. Populated for Container,
	// Interface, Cluster (container-glob form), and container-bound
	// Service queries.
	ContainerGlob string

	// Interface is the named interface for an Interface query.
	Interface string

	// Deprecated is true when the legacy "interface" label was used in
	// place of "if".
	Deprecated bool

	// ClusterFQDNPrefix is the FQDN portion preceding ".cluster." when
	// present (i.e. len(L) >= 3 for a Cluster query). nil when the
	// cluster query has no such prefix (bare "<container>.cluster.<suffix>").
	ClusterFQDNPrefix *string

	// Service fields, populated only when Kind == KindService.
	Shape                ServiceShape
	ContainerlessService bool   // query has no container label at all
	ServiceName           string // raw label value, e.g. "_http"; may be empty
	Protocol              string // raw label value, e.g. "_tcp"; may be empty
	Tag                    string // raw label value; may be empty
}
