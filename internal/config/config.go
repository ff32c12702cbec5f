package config

import (
	"fmt"
	"net"
)

// DefaultRelayPort is the port the relay listens on when none is configured.
const DefaultRelayPort = "3001"

type Config struct {
	RelayAddr string
	// AllowedOrigins restricts cross-origin requests. Empty means allow
	// all, the permissive default; restrict this in production.
	AllowedOrigins []string
}

func NewConfig(relayAddr string, allowedOrigins []string) (*Config, error) {
	if relayAddr == "" {
		return nil, fmt.Errorf("relay address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(relayAddr); err != nil {
		return nil, fmt.Errorf("invalid relay address %q: %w", relayAddr, err)
	}

	return &Config{
		RelayAddr:      relayAddr,
		AllowedOrigins: allowedOrigins,
	}, nil
}
