package net

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDPTransport exchanges fixed-size gossip packets over UDP. Datagrams of any
// other size are dropped.
type UDPTransport struct {
	logger *logrus.Entry

	conn    *net.UDPConn
	timeout time.Duration

	addrCache     map[string]*net.UDPAddr
	addrCacheLock sync.Mutex

	consumeCh chan Datagram

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewUDPTransport binds bindAddr. timeout is the write deadline of a send.
func NewUDPTransport(bindAddr string,
	queueSize int,
	timeout time.Duration,
	logger *logrus.Entry) (*UDPTransport, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	return &UDPTransport{
		logger:     logger,
		conn:       conn,
		timeout:    timeout,
		addrCache:  make(map[string]*net.UDPAddr),
		consumeCh:  make(chan Datagram, queueSize),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Listen implements the Transport interface. It reads datagrams until the
// transport is closed.
func (u *UDPTransport) Listen() {
	defer close(u.consumeCh)

	buf := make([]byte, PacketSize+1)
	for {
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if u.IsShutdown() {
				return
			}
			u.logger.WithError(err).Error("Reading UDP datagram")
			continue
		}

		if n != PacketSize {
			u.logger.WithFields(logrus.Fields{
				"from": from.String(),
				"size": n,
			}).Debug("Dropping datagram of invalid size")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case u.consumeCh <- Datagram{From: from.String(), Data: data}:
		case <-u.shutdownCh:
			return
		}
	}
}

// Consumer implements the Transport interface.
func (u *UDPTransport) Consumer() <-chan Datagram {
	return u.consumeCh
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

// Send implements the Transport interface.
func (u *UDPTransport) Send(target string, data []byte) error {
	if u.IsShutdown() {
		return ErrTransportShutdown
	}

	addr, err := u.resolve(target)
	if err != nil {
		return err
	}

	if u.timeout > 0 {
		u.conn.SetWriteDeadline(time.Now().Add(u.timeout))
	}
	_, err = u.conn.WriteToUDP(data, addr)
	return err
}

func (u *UDPTransport) resolve(target string) (*net.UDPAddr, error) {
	u.addrCacheLock.Lock()
	defer u.addrCacheLock.Unlock()

	if addr, ok := u.addrCache[target]; ok {
		return addr, nil
	}
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, err
	}
	u.addrCache[target] = addr
	return addr, nil
}

// IsShutdown is used to check if the transport is shutdown.
func (u *UDPTransport) IsShutdown() bool {
	select {
	case <-u.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to stop the transport.
func (u *UDPTransport) Close() error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if !u.shutdown {
		close(u.shutdownCh)
		u.shutdown = true
		return u.conn.Close()
	}
	return nil
}
