package transport

import (
	"net"
	"sync"
)

// Listener accepts connections from an inner net.Listener and wraps each as the server side of a secured connection.
type Listener struct {
	net.Listener

	mu     sync.Mutex
	config *Config
}

// Listen creates a Listener accepting connections on the given network address. The config is validated for the
// server role before the socket is opened.
func Listen(network, addr string, config *Config) (*Listener, error) {
	if err := config.checkRequirements(false); err != nil {
		return nil, err
	}

	inner, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}

	return &Listener{Listener: inner, config: config.clone()}, nil
}

// NewListener creates a Listener which wraps connections accepted by inner.
func NewListener(inner net.Listener, config *Config) (*Listener, error) {
	if err := config.checkRequirements(false); err != nil {
		return nil, err
	}
	return &Listener{Listener: inner, config: config.clone()}, nil
}

// Accept waits for and returns the next connection. The handshake is not performed until the first Read, Write, or
// Handshake on the returned Conn, so a slow or hostile peer cannot stall Accept.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	c, err := Server(conn, l.config)
	l.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.log.Debug("Accepted connection")
	return c, nil
}

// Close stops accepting connections and zeroes the Listener's copies of the private key and the pre-shared key.
// Connections already accepted hold their own copies and are unaffected.
func (l *Listener) Close() error {
	err := l.Listener.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.KeyPair != nil {
		l.config.KeyPair.Clear()
	}
	clear(l.config.PreSharedKey)
	return err
}

var _ net.Listener = (*Listener)(nil)
