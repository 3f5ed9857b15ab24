// Package pipeline owns one recording session: the media source, the frame loop and both
// telemetry listeners. Everything it learns reaches the presentation side through an event.Queue.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/config"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/event"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/telemetry"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const sourceName = "pipeline"

type CoordinatorOption func(c *Coordinator) error

// WithSource replaces the ffmpeg process with another byte stream.
func WithSource(s Source) CoordinatorOption {
	return func(c *Coordinator) error {
		if s == nil {
			return errors.New("nil source")
		}
		c.source = s
		return nil
	}
}

func WithQueue(q *event.Queue) CoordinatorOption {
	return func(c *Coordinator) error {
		c.events = q
		return nil
	}
}

func WithFusedAngle(a *telemetry.FusedAngle) CoordinatorOption {
	return func(c *Coordinator) error {
		c.angle = a
		return nil
	}
}

func WithSocketFactory(f telemetry.SocketFactory) CoordinatorOption {
	return func(c *Coordinator) error {
		c.factory = f
		return nil
	}
}

// WithListenHost restricts the telemetry sockets to one local address.
func WithListenHost(host string) CoordinatorOption {
	return func(c *Coordinator) error {
		c.host = host
		return nil
	}
}

type Coordinator struct {
	cfg     config.Config
	events  *event.Queue
	angle   *telemetry.FusedAngle
	source  Source
	factory telemetry.SocketFactory
	host    string

	ctx    context.Context
	fsm    *fsm.FSM
	cancel context.CancelFunc

	startMu   sync.Mutex
	stopping  atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
	frames    atomic.Uint64
	listeners []*telemetry.Listener

	mu  sync.Mutex
	err error
}

// NewCoordinator validates cfg; nothing runs until Start.
func NewCoordinator(cfg config.Config, opts ...CoordinatorOption) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	c := &Coordinator{
		cfg:  cfg,
		ctx:  context.Background(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.events == nil {
		c.events = event.NewQueue(cfg.MaxPendingFrames)
	}
	if c.angle == nil {
		c.angle = &telemetry.FusedAngle{}
	}
	c.fsm = newFSM(c.ctx)
	return c, nil
}

func (c *Coordinator) Events() *event.Queue              { return c.events }
func (c *Coordinator) FusedAngle() *telemetry.FusedAngle { return c.angle }

// Frames is the number of frames published so far.
func (c *Coordinator) Frames() uint64 { return c.frames.Load() }

// Listeners are the telemetry listeners that were started, live or replaying.
func (c *Coordinator) Listeners() []*telemetry.Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*telemetry.Listener(nil), c.listeners...)
}

// Start launches every activity and returns once they are running. Failures to bind a port,
// open a capture or launch ffmpeg degrade the session and are reported as events.
func (c *Coordinator) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if err := c.fsm.Event(evStart); err != nil {
		return errors.Wrapf(err, "start from %s", c.State())
	}
	ctx, log := logger.WithFields(ctx, logrus.Fields{"component": sourceName})
	ctx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = ctx, cancel

	g, gctx := errgroup.WithContext(ctx)

	for _, spec := range []struct {
		tag  telemetry.Tag
		port int
		pcap string
	}{
		{telemetry.Camera, c.cfg.CameraPort, c.cfg.CameraPCAP},
		{telemetry.Mast, c.cfg.MastPort, c.cfg.MastPCAP},
	} {
		c.startTelemetry(gctx, g, spec.tag, spec.port, spec.pcap)
	}

	if c.source == nil {
		src, err := MediaSource(c.cfg)
		if err != nil {
			log.WithError(err).Warn("MediaSource")
			c.events.Push(event.Status(sourceName, fmt.Sprintf("recording disabled: %v", err)))
		}
		c.source = src
	}
	if c.source != nil {
		if err := c.source.Start(gctx); err != nil {
			log.WithError(err).Warn("source.Start")
			c.events.Push(event.Status(sourceName, fmt.Sprintf("recording disabled: %v", err)))
			c.source = nil
		}
	}
	if src := c.source; src != nil {
		c.events.Push(event.Status(sourceName, c.describeSource()))
		g.Go(func() error { return c.watchExit(gctx, src) })
		if r := src.Frames(); r != nil {
			g.Go(func() error { return c.frameLoop(gctx, r) })
		}
		g.Go(func() error {
			<-gctx.Done()
			if err := src.Stop(); err != nil {
				log.WithError(err).Warn("source.Stop")
			}
			return nil
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	go func() {
		err := g.Wait()
		if c.source != nil {
			c.source.Close()
		}
		c.stopping.Store(true)
		c.transition(evStop)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if err != nil {
			log.WithError(err).Error("pipeline failed")
			c.transition(evFail)
		} else {
			c.transition(evStopped)
		}
		log.WithField("frames", c.frames.Load()).Info("pipeline stopped")
		close(c.done)
	}()

	c.transition(evStarted)
	return nil
}

func (c *Coordinator) describeSource() string {
	switch {
	case c.cfg.SDPPath != "":
		return "Recording from SDP…"
	case c.cfg.URL != "":
		return "Recording from " + c.cfg.URL + "…"
	}
	return "Recording…"
}

func (c *Coordinator) startTelemetry(ctx context.Context, g *errgroup.Group, tag telemetry.Tag, port int, pcap string) {
	log := logger.Entry(ctx).WithField("tag", tag.Name())
	l := telemetry.NewListener(telemetry.ListenerConfig{
		Tag:            tag,
		Host:           c.host,
		Port:           port,
		ReceiveTimeout: c.cfg.ReceiveTimeout,
		State:          c.angle,
		Events:         c.events,
		Factory:        c.factory,
	})

	if pcap != "" {
		f, err := os.Open(pcap)
		if err != nil {
			log.WithError(err).Warn("open capture")
			c.events.Push(event.Status(sourceName, fmt.Sprintf("%s replay disabled: %v", tag, err)))
			return
		}
		c.addListener(l)
		g.Go(func() error {
			defer f.Close()
			n, err := telemetry.Replay(ctx, f, port, l, true)
			if err != nil {
				log.WithError(err).Warn("Replay")
				c.events.Push(event.Log(sourceName, fmt.Sprintf("%s replay: %v", tag, err)))
				return nil
			}
			log.WithField("datagrams", n).Info("replay finished")
			return nil
		})
		return
	}

	if err := l.Bind(); err != nil {
		// Bind already published the status event
		log.WithError(err).Warn("Bind")
		return
	}
	c.addListener(l)
	g.Go(func() error { return l.Run(ctx) })
}

func (c *Coordinator) addListener(l *telemetry.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// watchExit turns an unexpected end of the source into a coordinated stop.
func (c *Coordinator) watchExit(ctx context.Context, src Source) error {
	err := src.Wait()
	if c.stopping.Load() {
		return nil
	}
	if err != nil {
		logger.Entry(ctx).WithError(err).Warn("media source exited")
		c.terminate(fmt.Sprintf("ffmpeg exited: %v", err))
	} else {
		c.terminate("ffmpeg exited")
	}
	return nil
}

// terminate starts a stop from inside the pipeline and asks the presentation loop to finish it.
func (c *Coordinator) terminate(reason string) {
	if c.stopping.Swap(true) {
		return
	}
	c.events.Push(event.Status(sourceName, reason))
	c.events.Push(event.RequestStop(sourceName))
	c.transition(evStop)
	c.cancel()
}

// Stop is idempotent and safe from any goroutine. It returns once every activity has exited.
func (c *Coordinator) Stop() error {
	c.stopOnce.Do(func() {
		c.startMu.Lock()
		defer c.startMu.Unlock()
		c.stopping.Store(true)
		if c.cancel == nil {
			// never started
			c.transition(evStop)
			close(c.done)
			return
		}
		c.transition(evStop)
		c.cancel()
	})
	return c.Wait()
}

// Wait blocks until the pipeline has stopped.
func (c *Coordinator) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the pipeline has stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.done }
