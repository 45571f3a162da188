// Package transport provides net.Conn and net.Listener implementations which secure a stream connection with a Disco
// handshake.
//
// Every handshake message and transport record is framed with a 2-byte big-endian length. Records carry at most
// NoiseMaxPlaintextSize bytes of plaintext plus a 16-byte tag; larger writes are split across several records.
package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/codahale/disco"
	"github.com/codahale/disco/hazmat/x25519"
	"github.com/codahale/disco/schemes/complex/noise"
	"github.com/sirupsen/logrus"
)

// Conn is a secured connection. The handshake runs on the first call to Read, Write, or Handshake.
//
// Any handshake failure, authentication failure, or record failure is permanent: the error is returned by every later
// call, and the Conn must be closed.
type Conn struct {
	conn     net.Conn
	config   *Config
	isClient bool
	log      logrus.FieldLogger

	handshakeMu       sync.Mutex
	handshakeComplete bool

	inMu, outMu, halfDuplexMu sync.Mutex
	halfDuplex                bool

	in, out *disco.Duplex
	input   []byte

	remoteStatic        []byte
	remoteAuthenticated bool
	handshakeHash       []byte

	deadlineMu                  sync.Mutex
	readDeadline, writeDeadline time.Time

	errMu sync.Mutex
	err   error
}

var _ net.Conn = (*Conn)(nil)

// Client returns a new client side of a secured connection using conn as the underlying transport. The config is
// validated, but no I/O is performed until the handshake.
func Client(conn net.Conn, config *Config) (*Conn, error) {
	return newConn(conn, config, true)
}

// Server returns a new server side of a secured connection using conn as the underlying transport. The config is
// validated, but no I/O is performed until the handshake.
func Server(conn net.Conn, config *Config) (*Conn, error) {
	return newConn(conn, config, false)
}

func newConn(conn net.Conn, config *Config, isClient bool) (*Conn, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidConfig)
	}

	if err := config.checkRequirements(isClient); err != nil {
		return nil, err
	}

	role := "server"
	if isClient {
		role = "client"
	}

	return &Conn{
		conn:       conn,
		config:     config.clone(),
		isClient:   isClient,
		halfDuplex: config.HalfDuplex,
		log: config.logger().WithFields(logrus.Fields{
			"pattern":     config.HandshakePattern.String(),
			"role":        role,
			"remote_addr": conn.RemoteAddr().String(),
		}),
	}, nil
}

// Dial connects to the given address and performs a handshake as the client.
func Dial(network, addr string, config *Config) (*Conn, error) {
	return DialContext(context.Background(), network, addr, config)
}

// DialContext connects to the given address and performs a handshake as the client. The context bounds both the
// connection and the handshake.
func DialContext(ctx context.Context, network, addr string, config *Config) (*Conn, error) {
	if err := config.checkRequirements(true); err != nil {
		return nil, err
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	c, err := Client(raw, config)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	if err := c.HandshakeContext(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Handshake runs the handshake if it has not yet been run. Most callers need not call it explicitly, as the first Read
// or Write does.
func (c *Conn) Handshake() error {
	return c.HandshakeContext(context.Background())
}

// HandshakeContext runs the handshake if it has not yet been run. If ctx is done before the handshake finishes, the
// handshake is interrupted and the Conn is unusable. A deadline on ctx applies to the handshake only; afterwards the
// deadlines set through the Conn's Set*Deadline methods are restored. Deadlines set directly on the underlying
// connection are not tracked and are cleared.
func (c *Conn) HandshakeContext(ctx context.Context) error {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	if c.handshakeComplete {
		return nil
	}

	if err := c.failure(); err != nil {
		return err
	}

	if ctx.Done() != nil {
		if deadline, ok := ctx.Deadline(); ok {
			c.deadlineMu.Lock()
			_ = c.conn.SetReadDeadline(earliest(c.readDeadline, deadline))
			_ = c.conn.SetWriteDeadline(earliest(c.writeDeadline, deadline))
			c.deadlineMu.Unlock()
		}

		var (
			interruptMu sync.Mutex
			finished    bool
		)
		stop := context.AfterFunc(ctx, func() {
			interruptMu.Lock()
			defer interruptMu.Unlock()
			if !finished {
				_ = c.conn.SetDeadline(time.Unix(1, 0))
			}
		})
		defer func() {
			stop()
			interruptMu.Lock()
			finished = true
			interruptMu.Unlock()
			c.restoreDeadlines()
		}()
	}

	c.log.Debug("Starting handshake")

	err := c.handshake()
	c.clearSecrets()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.log.WithError(err).Warn("Handshake failed")
		return c.fail(err)
	}

	c.handshakeComplete = true
	c.log.WithField("half_duplex", c.halfDuplex).Debug("Handshake complete")
	return nil
}

func (c *Conn) handshake() error {
	var rs *x25519.KeyPair
	if c.config.RemoteKey != nil {
		var err error
		if rs, err = x25519.NewPublicKey(c.config.RemoteKey); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	hs, err := noise.Initialize(c.config.HandshakePattern, c.isClient, c.config.Prologue, c.config.KeyPair, nil, rs, nil)
	if err != nil {
		return err
	}
	defer hs.Clear()

	hs.SetPSK(c.config.PreSharedKey)

	var (
		c1, c2   *disco.Duplex
		received []byte
	)
	for c1 == nil {
		if hs.ShouldWrite() {
			// Only the final two messages carry the static key proof.
			var payload []byte
			if hs.Remaining() <= 2 {
				payload = c.config.StaticPublicKeyProof
			}

			var frame []byte
			frame, c1, c2, err = hs.WriteMessage(payload, make([]byte, 2))
			if err != nil {
				return err
			}

			if err := c.writeFrame(frame); err != nil {
				return err
			}
		} else {
			msg, err := c.readFrame()
			if err != nil {
				return err
			}

			received, c1, c2, err = hs.ReadMessage(msg, nil)
			if err != nil {
				return err
			}
		}
	}

	c.remoteStatic = hs.RemoteStatic()
	c.remoteAuthenticated = c.remoteStatic != nil && rs != nil && bytes.Equal(c.remoteStatic, rs.PublicKey[:])

	if c.config.PublicKeyVerifier != nil && c.remoteStatic != nil {
		if !c.config.PublicKeyVerifier(c.remoteStatic, received) {
			c1.Clear()
			if c2 != nil {
				c2.Clear()
			}
			return ErrAuthenticationFailed
		}
		c.remoteAuthenticated = true
	}

	switch {
	case c2 == nil:
		c.halfDuplex = true
		c.in, c.out = c1, c1
	case c.isClient:
		c.in, c.out = c2, c1
	default:
		c.in, c.out = c1, c2
	}

	c.handshakeHash = hs.HandshakeHash()
	return nil
}

// Write encrypts b and sends it as one or more records.
func (c *Conn) Write(b []byte) (int, error) {
	if !c.isClient && c.config.HandshakePattern.IsOneWay() {
		return 0, fmt.Errorf("%w: a server should not write on one-way patterns", ErrProtocolViolation)
	}

	if err := c.Handshake(); err != nil {
		return 0, err
	}

	mu := c.writeLock()
	mu.Lock()
	defer mu.Unlock()

	if err := c.failure(); err != nil {
		return 0, err
	}

	var n int
	for len(b) > 0 {
		chunk := b[:min(len(b), NoiseMaxPlaintextSize)]

		frame := make([]byte, 2, 2+len(chunk)+disco.TagSize)
		frame = append(frame, c.out.SendENC(chunk)...)
		frame = append(frame, c.out.SendMAC(disco.TagSize)...)

		if err := c.writeFrame(frame); err != nil {
			return n, c.fail(err)
		}

		n += len(chunk)
		b = b[len(chunk):]
	}
	return n, nil
}

// Read reads decrypted data into b. If a record holds more plaintext than fits in b, the rest is returned by later
// calls.
func (c *Conn) Read(b []byte) (int, error) {
	if c.isClient && c.config.HandshakePattern.IsOneWay() {
		return 0, fmt.Errorf("%w: a client should not read on one-way patterns", ErrProtocolViolation)
	}

	if err := c.Handshake(); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	mu := c.readLock()
	mu.Lock()
	defer mu.Unlock()

	if len(c.input) > 0 {
		n := copy(b, c.input)
		c.input = c.input[n:]
		return n, nil
	}

	if err := c.failure(); err != nil {
		return 0, err
	}

	frame, err := c.readFrame()
	if err != nil {
		return 0, c.fail(err)
	}

	if len(frame) < disco.TagSize {
		c.log.Warn("Received a record without a tag")
		return 0, c.fail(fmt.Errorf("disco/transport: short record: %w", disco.ErrTamperedData))
	}

	split := len(frame) - disco.TagSize
	plaintext := c.in.RecvENC(frame[:split])
	if !c.in.RecvMAC(frame[split:]) {
		clear(plaintext)
		c.log.Warn("Received a record which failed to authenticate")
		return 0, c.fail(fmt.Errorf("disco/transport: %w", disco.ErrTamperedData))
	}

	n := copy(b, plaintext)
	if n < len(plaintext) {
		c.input = plaintext[n:]
	}
	return n, nil
}

// Close closes the underlying connection and clears the cipher states.
func (c *Conn) Close() error {
	err := c.conn.Close()
	c.fail(net.ErrClosed)

	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()

	rl, wl := c.readLock(), c.writeLock()
	rl.Lock()
	defer rl.Unlock()
	if wl != rl {
		wl.Lock()
		defer wl.Unlock()
	}

	if c.in != nil {
		c.in.Clear()
	}
	if c.out != nil && c.out != c.in {
		c.out.Clear()
	}
	c.in, c.out, c.input = nil, nil, nil
	c.clearSecrets()
	return err
}

// RemotePublicKey returns the peer's static public key, or nil if the handshake has not completed or the pattern does
// not reveal it.
func (c *Conn) RemotePublicKey() []byte {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()
	return bytes.Clone(c.remoteStatic)
}

// IsRemoteAuthenticated reports whether the peer's static public key was either configured in advance or accepted by
// the PublicKeyVerifier.
func (c *Conn) IsRemoteAuthenticated() bool {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()
	return c.remoteAuthenticated
}

// HandshakeHash returns a 32-byte value unique to this connection's handshake, which both peers share. It may be used
// for channel binding. It returns nil if the handshake has not completed.
func (c *Conn) HandshakeHash() []byte {
	c.handshakeMu.Lock()
	defer c.handshakeMu.Unlock()
	return bytes.Clone(c.handshakeHash)
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	c.readDeadline, c.writeDeadline = t, t
	return c.conn.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	c.readDeadline = t
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	c.writeDeadline = t
	return c.conn.SetWriteDeadline(t)
}

func (c *Conn) restoreDeadlines() {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	_ = c.conn.SetReadDeadline(c.readDeadline)
	_ = c.conn.SetWriteDeadline(c.writeDeadline)
}

// earliest returns the earlier of two deadlines, where the zero time means no deadline.
func earliest(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}

// clearSecrets zeroes the Conn's copies of the local static private key and the pre-shared key. They are only needed
// for the handshake, which never runs twice. The caller must hold handshakeMu.
func (c *Conn) clearSecrets() {
	if c.config.KeyPair != nil {
		c.config.KeyPair.Clear()
	}
	clear(c.config.PreSharedKey)
}

func (c *Conn) readLock() *sync.Mutex {
	if c.halfDuplex {
		return &c.halfDuplexMu
	}
	return &c.inMu
}

func (c *Conn) writeLock() *sync.Mutex {
	if c.halfDuplex {
		return &c.halfDuplexMu
	}
	return &c.outMu
}

// writeFrame fills in the 2-byte length prefix of frame and writes it.
func (c *Conn) writeFrame(frame []byte) error {
	size := len(frame) - 2
	if size > NoiseMessageLength {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	binary.BigEndian.PutUint16(frame, uint16(size))
	_, err := c.conn.Write(frame)
	return err
}

// readFrame reads a length-prefixed frame.
func (c *Conn) readFrame() ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, err
	}

	size := int(binary.BigEndian.Uint16(header[:]))
	if size > NoiseMessageLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(c.conn, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// fail records err as the Conn's permanent error, unless one is already recorded, and returns the recorded error.
func (c *Conn) fail(err error) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.err == nil {
		c.err = err
	}
	return c.err
}

func (c *Conn) failure() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}
