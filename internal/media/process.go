package media

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultStopGrace = 3 * time.Second

// Process runs the media pipeline and exposes its stdout as a byte stream.
// The stdout pipe is owned here rather than by exec.Cmd so that Wait never closes it
// under a reader that still has frames to drain.
type Process struct {
	path  string
	args  []string
	grace time.Duration
	// Preview selects whether stdout carries frames.
	preview bool

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdout  *os.File
	exited  chan struct{}
	waitErr error
}

func NewProcess(path string, args []string, preview bool, grace time.Duration) *Process {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &Process{
		path:    path,
		args:    args,
		grace:   grace,
		preview: preview,
		exited:  make(chan struct{}),
	}
}

// Start launches the process. Cancelling ctx or calling Stop sends SIGTERM and kills the process
// if it is still running after the grace period.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return errors.New("process already started")
	}
	log := logger.Entry(ctx).WithField("component", "media")

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, p.path, p.args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = p.grace

	var stdoutW *os.File
	if p.preview {
		r, w, err := os.Pipe()
		if err != nil {
			cancel()
			return errors.Wrap(err, "os.Pipe")
		}
		p.stdout, stdoutW = r, w
		cmd.Stdout = w
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		cancel()
		p.closeStdout()
		if stdoutW != nil {
			stdoutW.Close()
		}
		return errors.Wrap(err, "os.Pipe")
	}
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		cancel()
		p.closeStdout()
		if stdoutW != nil {
			stdoutW.Close()
		}
		errR.Close()
		errW.Close()
		return errors.Wrapf(err, "couldn't start %s", p.path)
	}
	// the child holds its own copies
	if stdoutW != nil {
		stdoutW.Close()
	}
	errW.Close()

	p.cmd = cmd
	p.cancel = cancel
	log.WithFields(logrus.Fields{"pid": cmd.Process.Pid, "args": p.args}).Info("media process started")

	go logStderr(log, errR)
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(p.exited)
		log.WithError(err).WithField("exit_code", cmd.ProcessState.ExitCode()).Info("media process exited")
	}()
	return nil
}

func logStderr(log *logrus.Entry, r io.ReadCloser) {
	defer r.Close()
	s := bufio.NewScanner(r)
	for s.Scan() {
		log.Debug(s.Text())
	}
}

// Frames is the raw preview stream, nil when preview is disabled or before Start.
func (p *Process) Frames() io.Reader {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Wait blocks until the process exits and returns its exit error. Safe to call repeatedly.
func (p *Process) Wait() error {
	p.mu.Lock()
	started := p.cmd != nil
	p.mu.Unlock()
	if !started {
		return errors.New("process not started")
	}
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Stop asks the process to terminate and waits for it. Idempotent.
func (p *Process) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-p.exited:
	case <-time.After(2*p.grace + time.Second):
		return errors.New("media process did not exit")
	}
	return nil
}

// Close releases the read end of the preview pipe. Call it once frame reading is done.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeStdout()
}

// PRE: must own mutex
func (p *Process) closeStdout() error {
	if p.stdout == nil {
		return nil
	}
	err := p.stdout.Close()
	p.stdout = nil
	return err
}
