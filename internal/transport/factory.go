// internal/transport/factory.go
package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// NetPrefix marks a port string as a TCP bridge address (net:host:port)
const NetPrefix = "net:"

// CreateFromPort creates a serial or TCP transport from a port string
func CreateFromPort(port string, baudRate int, logger *zap.Logger) (Transport, error) {
	if port == "" {
		return nil, fmt.Errorf("port is required")
	}

	if strings.HasPrefix(port, NetPrefix) {
		config, err := parseNetPort(strings.TrimPrefix(port, NetPrefix))
		if err != nil {
			return nil, err
		}

		logger.Debug("Creating TCP transport",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		)
		return NewTCPConnection(config, logger), nil
	}

	if baudRate < 0 {
		return nil, fmt.Errorf("invalid baud rate: %d", baudRate)
	}

	logger.Debug("Creating serial transport",
		zap.String("port", port),
		zap.Int("baud_rate", baudRate),
	)
	return NewSerialConnection(&SerialConfig{
		Port:     port,
		BaudRate: baudRate,
		Parity:   "none",
	}, logger), nil
}

// parseNetPort parses host:port
func parseNetPort(address string) (*TCPConfig, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid network port %q: %w", address, err)
	}
	if host == "" {
		return nil, fmt.Errorf("invalid network port %q: host is required", address)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port number: %s", portStr)
	}

	return &TCPConfig{
		Host:      host,
		Port:      port,
		KeepAlive: true,
	}, nil
}
