// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrNotOpen is returned by I/O on a closed transport
var ErrNotOpen = errors.New("transport not open")

// Type identifies the physical link of a transport
type Type string

const (
	TypeSerial Type = "serial"
	TypeUSB    Type = "usb"
	TypeTCP    Type = "tcp"
)

// Transport is a byte link to a programmer
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read returns an empty slice when the link's read
	// timeout expires without data.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Transport information
	Type() Type
	Stats() Stats
}

// Stats provides transport-level statistics
type Stats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

func (s *Stats) recordWrite(n int, latency time.Duration) {
	s.BytesWritten += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}

func (s *Stats) recordRead(n int) {
	s.BytesRead += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
}
