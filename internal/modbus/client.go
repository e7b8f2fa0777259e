package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Protocol constants for Modbus TCP framing.
const (
	// mbapHeaderLen is the length of the MBAP header:
	// transaction(2) + protocol(2) + length(2) + unit(1).
	mbapHeaderLen = 7

	// protocolIDTCP is the protocol identifier for Modbus TCP (always 0).
	protocolIDTCP = 0

	// funcReadHolding is the Read Holding Registers function code.
	funcReadHolding = 0x03

	// exceptionFlag is OR-ed into the function code of exception replies.
	exceptionFlag = 0x80

	// maxQuantity is the largest register count a single FC03 request
	// may carry.
	maxQuantity = 125

	// staleReplyWindow is half the uint16 transaction counter space. A
	// reply whose id trails the outstanding one by less than this is
	// treated as a late answer to an earlier request rather than as a
	// transaction mismatch.
	staleReplyWindow = 1 << 15

	// responseBufferSize holds the largest possible FC03 reply:
	// header(7) + function(1) + byte count(1) + 125 registers * 2.
	responseBufferSize = mbapHeaderLen + 2 + maxQuantity*2
)

// Default timeouts for Modbus communication.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second
)

// Config holds Modbus TCP connection configuration.
type Config struct {
	// Address is the host:port of the unit (SDongle default port 502).
	Address string

	// UnitID is the Modbus unit (slave) identifier.
	UnitID byte

	// ConnectTimeout is the maximum time to wait for the dial.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout is the per-transaction response timeout.
	// Default: 10 seconds.
	ReadTimeout time.Duration
}

// Client is a Modbus TCP client for a single unit.
//
// Thread Safety:
//   - All methods are safe for concurrent use; transactions are
//     serialized because the unit supports one in-flight request.
type Client struct {
	cfg  Config
	conn net.Conn

	// txMu serializes entire transactions, not just writes: a request
	// must see its own reply before the next request goes out.
	txMu sync.Mutex

	// txID is the next transaction identifier (incremented per request).
	txID uint16

	// Connection state. Set false on the first transport-level failure;
	// the owner is expected to discard the client and dial a new one.
	connMu    sync.RWMutex
	connected bool

	// respBuf is reused across transactions; guarded by txMu.
	respBuf [responseBufferSize]byte
}

// Dial establishes a Modbus TCP connection to the unit.
//
// Parameters:
//   - ctx: Context for cancellation of the dial
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected client ready for transactions
//   - error: If the dial fails
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, cfg.Address, err)
	}

	return &Client{
		cfg:       cfg,
		conn:      conn,
		connected: true,
	}, nil
}

// ReadHoldingRegisters reads quantity registers starting at address and
// returns the raw big-endian register bytes (quantity*2 bytes).
//
// Parameters:
//   - ctx: Context for cancellation; its deadline tightens the read timeout
//   - address: Starting register address
//   - quantity: Number of 16-bit registers (1..125)
//
// Returns:
//   - []byte: Register payload, length quantity*2
//   - error: Transport, framing or exception error
func (c *Client) ReadHoldingRegisters(ctx context.Context, address uint16, quantity uint16) ([]byte, error) {
	if quantity == 0 || quantity > maxQuantity {
		return nil, fmt.Errorf("%w: quantity %d out of range 1..%d", ErrInvalidResponse, quantity, maxQuantity)
	}
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("modbus: %w", ctx.Err())
	default:
	}

	c.txID++
	tx := c.txID

	// MBAP + PDU: function(1) + start(2) + quantity(2).
	var req [mbapHeaderLen + 5]byte
	binary.BigEndian.PutUint16(req[0:2], tx)
	binary.BigEndian.PutUint16(req[2:4], protocolIDTCP)
	binary.BigEndian.PutUint16(req[4:6], 6) // unit(1) + PDU(5)
	req[6] = c.cfg.UnitID
	req[7] = funcReadHolding
	binary.BigEndian.PutUint16(req[8:10], address)
	binary.BigEndian.PutUint16(req[10:12], quantity)

	if err := c.send(ctx, req[:]); err != nil {
		return nil, err
	}

	payload, err := c.receive(ctx, tx)
	if err != nil {
		return nil, err
	}

	if len(payload) < 2 {
		c.markDead()
		return nil, fmt.Errorf("%w: short PDU (%d bytes)", ErrInvalidResponse, len(payload))
	}

	function := payload[0]
	if function == funcReadHolding|exceptionFlag {
		// Exceptions are protocol-level: the connection itself is fine.
		return nil, &ExceptionError{Function: funcReadHolding, Code: payload[1]}
	}
	if function != funcReadHolding {
		c.markDead()
		return nil, fmt.Errorf("%w: unexpected function 0x%02X", ErrInvalidResponse, function)
	}

	byteCount := int(payload[1])
	data := payload[2:]
	if byteCount != int(quantity)*2 || len(data) != byteCount {
		c.markDead()
		return nil, fmt.Errorf("%w: byte count %d, want %d", ErrInvalidResponse, byteCount, quantity*2)
	}

	out := make([]byte, byteCount)
	copy(out, data)
	return out, nil
}

// send writes a framed request with a write deadline.
func (c *Client) send(ctx context.Context, frame []byte) error {
	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.markDead()
		return fmt.Errorf("%w: set write deadline: %w", ErrNotConnected, err)
	}

	if _, err := c.conn.Write(frame); err != nil {
		c.markDead()
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("%w: %w", ErrClosedMidRequest, err)
		}
		return fmt.Errorf("modbus: write: %w", err)
	}
	return nil
}

// receive reads one reply frame and validates its MBAP header against the
// expected transaction id and unit.
//
// Replies to stale transactions (an earlier timed-out request answered
// late) are consumed and skipped rather than failing the current
// transaction.
func (c *Client) receive(ctx context.Context, wantTx uint16) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			c.markDead()
			return nil, fmt.Errorf("%w: set read deadline: %w", ErrNotConnected, err)
		}

		header := c.respBuf[:mbapHeaderLen]
		if _, err := io.ReadFull(c.conn, header); err != nil {
			c.markDead()
			return nil, c.classifyReadError(err)
		}

		tx := binary.BigEndian.Uint16(header[0:2])
		proto := binary.BigEndian.Uint16(header[2:4])
		length := binary.BigEndian.Uint16(header[4:6])
		unit := header[6]

		if proto != protocolIDTCP {
			c.markDead()
			return nil, fmt.Errorf("%w: protocol id %d", ErrInvalidResponse, proto)
		}
		// Length counts the unit byte plus the PDU.
		if length < 2 || int(length)-1 > len(c.respBuf)-mbapHeaderLen {
			c.markDead()
			return nil, fmt.Errorf("%w: frame length %d", ErrInvalidResponse, length)
		}

		pdu := c.respBuf[mbapHeaderLen : mbapHeaderLen+int(length)-1]
		if _, err := io.ReadFull(c.conn, pdu); err != nil {
			c.markDead()
			return nil, c.classifyReadError(err)
		}

		if tx != wantTx {
			// A reply trailing the current id by less than half the
			// counter space is a stale answer to a request we already
			// gave up on; drain it and wait for ours within the same
			// deadline. The subtraction wraps with the uint16 counter,
			// so the window holds across rollover too. Anything else
			// means another master is on the session.
			if delta := wantTx - tx; delta < staleReplyWindow {
				continue
			}
			c.markDead()
			return nil, fmt.Errorf("%w: got tx=%d, want tx=%d",
				ErrTransactionMismatch, tx, wantTx)
		}
		if unit != c.cfg.UnitID {
			c.markDead()
			return nil, fmt.Errorf("%w: got unit=%d, want unit=%d",
				ErrTransactionMismatch, unit, c.cfg.UnitID)
		}

		return pdu, nil
	}
}

// classifyReadError converts transport read errors into the package's
// sentinel errors so callers (and the conflict monitor) can tell a silent
// unit from a snatched session.
func (c *Client) classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosedMidRequest, err)
	}
	return fmt.Errorf("modbus: read: %w", err)
}

// markDead flags the connection as unusable. The owner discards the
// client on the next IsConnected check or read error.
func (c *Client) markDead() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// IsConnected reports whether the connection is believed usable.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Close closes the connection. Safe to call on an already-dead client.
//
// Returns:
//   - error: From the underlying close; callers typically ignore it
func (c *Client) Close() error {
	c.markDead()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
