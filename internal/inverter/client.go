package inverter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/sunbridge/internal/modbus"
)

// Config holds the connection settings for one inverter.
type Config struct {
	Host           string
	Port           int
	UnitID         uint8
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client reads named registers from a SUN2000 over a single Modbus TCP
// connection. It is not safe for concurrent use; the poll scheduler is the
// only caller.
type Client struct {
	conn *modbus.Client
}

// Connect dials the inverter and returns a ready client.
//
// Parameters:
//   - ctx: Context bounding the TCP dial
//   - cfg: Inverter address and timeouts
//
// Returns:
//   - *Client: Connected client
//   - error: modbus.ErrConnectionFailed wrapped with the address
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := modbus.Dial(ctx, modbus.Config{
		Address:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		UnitID:         cfg.UnitID,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Read reads and decodes one named register.
//
// Parameters:
//   - ctx: Context for cancellation
//   - key: Register key from the table, e.g. "active_power"
//
// Returns:
//   - Sample: Decoded value with read timestamp
//   - error: ErrUnknownRegister, transport or decode error
func (c *Client) Read(ctx context.Context, key string) (Sample, error) {
	reg, err := Lookup(key)
	if err != nil {
		return Sample{}, err
	}

	data, err := c.conn.ReadHoldingRegisters(ctx, reg.Address, reg.Quantity)
	if err != nil {
		return Sample{}, fmt.Errorf("read %s: %w", key, err)
	}

	value, err := Decode(reg, data)
	if err != nil {
		return Sample{}, err
	}

	return Sample{Key: key, Value: value, At: time.Now()}, nil
}

// IsConnected reports whether the underlying connection is usable.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close tears down the TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
