// internal/transport/config.go
package transport

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// USBConfig represents USB bulk connection configuration
type USBConfig struct {
	VendorID     uint16        `json:"vendor_id"`
	ProductID    uint16        `json:"product_id"`
	SerialNumber string        `json:"serial_number,omitempty"`
	OutEndpoint  int           `json:"out_endpoint"`
	InEndpoint   int           `json:"in_endpoint"`
	Timeout      time.Duration `json:"timeout"`
}

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Default timeouts applied when a config leaves them unset
const (
	DefaultSerialTimeout  = 500 * time.Millisecond
	DefaultUSBTimeout     = 2 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultBaudRate       = 115200
)
