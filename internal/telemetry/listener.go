package telemetry

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/event"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReceiveTimeout = time.Second
	maxDatagram           = 65536
)

// Socket is the part of *net.UDPConn the listener needs.
type Socket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (Socket, error)
}

type udpFactory struct{}

func (udpFactory) ListenUDP(network string, laddr *net.UDPAddr) (Socket, error) {
	return net.ListenUDP(network, laddr)
}

// DatagramHandler consumes raw telemetry payloads.
type DatagramHandler interface {
	HandleDatagram(payload []byte)
}

type ListenerConfig struct {
	Tag            Tag
	Host           string // empty binds every interface
	Port           int
	ReceiveTimeout time.Duration
	State          *FusedAngle
	Events         event.Publisher
	Factory        SocketFactory
}

type Stats struct {
	Datagrams uint64
	Samples   uint64
	Rejected  uint64
}

// Listener receives sentences for one tag and writes them into the shared FusedAngle.
type Listener struct {
	cfg    ListenerConfig
	source string

	mu   sync.Mutex
	sock Socket

	stopped   atomic.Bool
	closeOnce sync.Once

	datagrams atomic.Uint64
	samples   atomic.Uint64
	rejected  atomic.Uint64
}

var _ DatagramHandler = &Listener{}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.Factory == nil {
		cfg.Factory = udpFactory{}
	}
	if cfg.State == nil {
		cfg.State = &FusedAngle{}
	}
	return &Listener{
		cfg:    cfg,
		source: "telemetry/" + strings.ToLower(cfg.Tag.Name()),
	}
}

func (l *Listener) Tag() Tag { return l.cfg.Tag }

// Bind opens the UDP socket. A failure is published once as a status event and returned.
func (l *Listener) Bind() error {
	addr := &net.UDPAddr{Port: l.cfg.Port}
	if l.cfg.Host != "" {
		ip := net.ParseIP(l.cfg.Host)
		if ip == nil {
			err := errors.Errorf("invalid host %q", l.cfg.Host)
			l.publish(event.Status(l.source, fmt.Sprintf("%s listener: %v", l.cfg.Tag, err)))
			return err
		}
		addr.IP = ip
	}
	sock, err := l.cfg.Factory.ListenUDP("udp", addr)
	if err != nil {
		err = errors.Wrapf(err, "listen udp port %d", l.cfg.Port)
		l.publish(event.Status(l.source, fmt.Sprintf("%s listener disabled: %v", l.cfg.Tag, err)))
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped.Load() {
		sock.Close()
		return errors.New("listener stopped before bind")
	}
	l.sock = sock
	return nil
}

// Addr is the bound address, nil before Bind.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sock == nil {
		return nil
	}
	return l.sock.LocalAddr()
}

// Run receives until ctx is done or Stop is called. Bind must have succeeded.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	sock := l.sock
	l.mu.Unlock()
	if sock == nil {
		return errors.New("listener not bound")
	}
	ctx, log := logger.WithFields(ctx, logrus.Fields{"component": l.source, "port": l.cfg.Port})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-done:
		}
	}()
	defer l.Stop()

	log.Info("telemetry listener started")
	buf := make([]byte, maxDatagram)
	for !l.stopped.Load() {
		if err := sock.SetReadDeadline(time.Now().Add(l.cfg.ReceiveTimeout)); err != nil && !l.stopped.Load() {
			log.WithError(err).Warn("SetReadDeadline")
		}
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if l.stopped.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			log.WithError(err).Warn("ReadFromUDP")
			continue
		}
		l.HandleDatagram(buf[:n])
	}
	st := l.Stats()
	log.WithFields(logrus.Fields{
		"datagrams": st.Datagrams,
		"samples":   st.Samples,
		"rejected":  st.Rejected,
	}).Info("telemetry listener stopped")
	return nil
}

// HandleDatagram decodes payload and applies every matching sample in order.
func (l *Listener) HandleDatagram(payload []byte) {
	l.datagrams.Add(1)
	samples, rejected := DecodeDatagram(payload, l.cfg.Tag)
	l.rejected.Add(uint64(rejected))
	for _, s := range samples {
		l.cfg.State.Apply(s)
		l.samples.Add(1)
		l.publish(event.Status(l.source, fmt.Sprintf("%s: %.2f°", s.Tag, s.Degrees)))
	}
}

// Stop is idempotent and safe from any goroutine. Closing the socket unblocks a pending read.
func (l *Listener) Stop() {
	l.stopped.Store(true)
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.sock != nil {
			l.sock.Close()
		}
	})
}

func (l *Listener) Stats() Stats {
	return Stats{
		Datagrams: l.datagrams.Load(),
		Samples:   l.samples.Load(),
		Rejected:  l.rejected.Load(),
	}
}

func (l *Listener) publish(e event.Event) {
	if l.cfg.Events != nil {
		l.cfg.Events.Push(e)
	}
}
