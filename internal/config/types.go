// Package config provides configuration loading for lexa using Viper.
//
// Configuration is a single YAML document with one top-level "server"
// section, mirroring the semantic schema of the original HCL layout:
// server.lxd (upstream identity + zone suffix), server.tls (JSON API TLS),
// server.dns (DNS transport binds), and server.log (logging).
//
// Environment variables use the LEXA_ prefix and underscore-separated keys:
//   - LEXA_SERVER_LXD_SUFFIX -> server.lxd.suffix
//   - LEXA_SERVER_LXD_BIND_PORT -> server.lxd.bind.port
package config

import (
	"os"
	"strings"
)

// BindConfig is a host:port pair shared by every transport section.
type BindConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// LXDConfig carries the upstream container host's mTLS identity material
// and the DNS zone suffix this server answers authoritatively for.
type LXDConfig struct {
	Suffix      string     `yaml:"suffix"      mapstructure:"suffix"`
	Bind        BindConfig `yaml:"bind"        mapstructure:"bind"`
	Certificate string     `yaml:"certificate" mapstructure:"certificate"`
	Key         string     `yaml:"key"         mapstructure:"key"`
	CACert      string     `yaml:"ca_certificate" mapstructure:"ca_certificate"`
}

// MTLSConfig names a CA bundle used to verify client certificates on the
// JSON API listener.
type MTLSConfig struct {
	CACertificate string `yaml:"ca_certificate" mapstructure:"ca_certificate"`
}

// TLSConfig configures the JSON read API's HTTPS listener.
type TLSConfig struct {
	Bind         BindConfig  `yaml:"bind"          mapstructure:"bind"`
	SoReusePort  bool        `yaml:"so_reuse_port" mapstructure:"so_reuse_port"`
	Certificate  string      `yaml:"certificate"   mapstructure:"certificate"`
	Key          string      `yaml:"key"           mapstructure:"key"`
	MTLS         *MTLSConfig `yaml:"mtls"          mapstructure:"mtls"`
	Hostname     string      `yaml:"hostname"      mapstructure:"hostname"`
}

// TransportTLSConfig configures an optional encrypted DNS transport
// (DoT or DoH) that shares the same cert/key/bind shape.
type TransportTLSConfig struct {
	Bind        BindConfig `yaml:"bind"        mapstructure:"bind"`
	Certificate string     `yaml:"certificate" mapstructure:"certificate"`
	Key         string     `yaml:"key"         mapstructure:"key"`
	Hostname    string     `yaml:"hostname"    mapstructure:"hostname"`
}

// QUICConfig configures the optional DoQ (RFC 9250) transport.
type QUICConfig struct {
	Bind        BindConfig `yaml:"bind"        mapstructure:"bind"`
	Hostname    string     `yaml:"hostname"    mapstructure:"hostname"`
	Certificate string     `yaml:"certificate" mapstructure:"certificate"`
	Key         string     `yaml:"key"         mapstructure:"key"`
}

// DNSConfig configures the always-on UDP/TCP listeners plus the optional
// encrypted transports layered on top of them.
type DNSConfig struct {
	Bind BindConfig           `yaml:"bind" mapstructure:"bind"`
	DoT  *TransportTLSConfig  `yaml:"dot"  mapstructure:"dot"`
	DoH  *TransportTLSConfig  `yaml:"doh"  mapstructure:"doh"`
	QUIC *QUICConfig          `yaml:"quic" mapstructure:"quic"`
}

// LogConfig controls the ambient logging surface.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	Out   string `yaml:"out"   mapstructure:"out"`
}

// ServerConfig is the single recognized top-level configuration section.
type ServerConfig struct {
	LXD LXDConfig `yaml:"lxd" mapstructure:"lxd"`
	TLS TLSConfig `yaml:"tls" mapstructure:"tls"`
	DNS DNSConfig `yaml:"dns" mapstructure:"dns"`
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// ResolveConfigPath determines the config file path from flag, environment,
// or the documented default.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("LEXA_CONFIG")); v != "" {
		return v
	}
	return "lexa.hcl"
}
