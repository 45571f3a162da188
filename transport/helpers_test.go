package transport

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codahale/disco/hazmat/x25519"
	"github.com/codahale/disco/internal/testdata"
	"github.com/codahale/disco/schemes/complex/noise"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// identities holds deterministic static keys for a client and server, plus a root signing key which certifies both.
type identities struct {
	client, server *x25519.KeyPair
	root           ed25519.PrivateKey
}

func newIdentities(t testing.TB, name string) *identities {
	t.Helper()

	drbg := testdata.New("disco transport " + name)
	return &identities{
		client: drbg.KeyPair(),
		server: drbg.KeyPair(),
		root:   ed25519.NewKeyFromSeed(drbg.Data(ed25519.SeedSize)),
	}
}

// configs returns a client and server config for the given pattern, filling in every value the pattern requires.
func (id *identities) configs(t testing.TB, ht noise.HandshakeType) (client, server *Config) {
	t.Helper()

	p, err := noise.Lookup(ht)
	require.NoError(t, err)

	client = &Config{HandshakePattern: ht, Prologue: []byte("disco test")}
	server = &Config{HandshakePattern: ht, Prologue: []byte("disco test")}

	verifier := CreatePublicKeyVerifier(id.root.Public().(ed25519.PublicKey))
	if p.RequiresLocalStatic(true) {
		client.KeyPair = id.client
	}
	if p.RequiresLocalStatic(false) {
		server.KeyPair = id.server
	}
	switch ht {
	case noise.NX, noise.KX, noise.XX, noise.IX:
		server.StaticPublicKeyProof = id.proof(t, id.server)
		client.PublicKeyVerifier = verifier
	}
	switch ht {
	case noise.XN, noise.XK, noise.XX, noise.X, noise.IN, noise.IK, noise.IX:
		client.StaticPublicKeyProof = id.proof(t, id.client)
		server.PublicKeyVerifier = verifier
	}
	if p.RequiresRemoteStatic(true) {
		client.RemoteKey = bytes.Clone(id.server.PublicKey[:])
	}
	if p.RequiresRemoteStatic(false) {
		server.RemoteKey = bytes.Clone(id.client.PublicKey[:])
	}
	if p.RequiresPSK() {
		psk := bytes.Repeat([]byte{0x42}, PSKSize)
		client.PreSharedKey, server.PreSharedKey = psk, bytes.Clone(psk)
	}

	return client, server
}

func (id *identities) proof(t testing.TB, kp *x25519.KeyPair) []byte {
	t.Helper()

	proof, err := CreateStaticPublicKeyProof(id.root, kp.PublicKey[:])
	require.NoError(t, err)
	return proof
}

// newPeers connects a client and a server over an in-memory pipe.
func newPeers(t testing.TB, clientConfig, serverConfig *Config) (client, server *Conn) {
	t.Helper()

	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	client, err := Client(a, clientConfig)
	require.NoError(t, err)

	server, err = Server(b, serverConfig)
	require.NoError(t, err)

	return client, server
}

// handshake runs both sides of the handshake concurrently and requires both to succeed.
func handshake(t testing.TB, client, server *Conn) {
	t.Helper()

	clientErr, serverErr := handshakeErrors(client, server)
	require.NoError(t, clientErr, "client handshake")
	require.NoError(t, serverErr, "server handshake")
}

// handshakeErrors runs both sides of the handshake concurrently. A side which fails closes its Conn so the other side
// is not left waiting for a message which will never arrive.
func handshakeErrors(client, server *Conn) (clientErr, serverErr error) {
	var g errgroup.Group
	g.Go(func() error {
		if clientErr = client.Handshake(); clientErr != nil {
			_ = client.Close()
		}
		return nil
	})
	g.Go(func() error {
		if serverErr = server.Handshake(); serverErr != nil {
			_ = server.Close()
		}
		return nil
	})
	_ = g.Wait()
	return clientErr, serverErr
}

// exchange writes msg from one Conn and requires the other to read it back unchanged.
func exchange(t testing.TB, from, to *Conn, msg []byte) {
	t.Helper()

	var g errgroup.Group
	g.Go(func() error {
		_, err := from.Write(msg)
		return err
	})

	got := make([]byte, len(msg))
	_, err := io.ReadFull(to, got)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.Equal(t, msg, got)
}

// tamperConn flips the last bit of every write once armed.
type tamperConn struct {
	net.Conn
	armed atomic.Bool
}

func (c *tamperConn) Write(b []byte) (int, error) {
	if c.armed.Load() && len(b) > 0 {
		b = bytes.Clone(b)
		b[len(b)-1] ^= 1
	}
	return c.Conn.Write(b)
}

// brokenConn sends all writes to w.
type brokenConn struct {
	net.Conn
	w io.Writer
}

func (c *brokenConn) Write(b []byte) (int, error) {
	return c.w.Write(b)
}

// deadlineConn records the deadlines most recently set on it.
type deadlineConn struct {
	net.Conn

	mu          sync.Mutex
	read, write time.Time
}

func (c *deadlineConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.read, c.write = t, t
	c.mu.Unlock()
	return c.Conn.SetDeadline(t)
}

func (c *deadlineConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.read = t
	c.mu.Unlock()
	return c.Conn.SetReadDeadline(t)
}

func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.write = t
	c.mu.Unlock()
	return c.Conn.SetWriteDeadline(t)
}

func (c *deadlineConn) deadlines() (read, write time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read, c.write
}
