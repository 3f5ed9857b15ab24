package pipeline

import (
	"context"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

const (
	StateIdle     = "idle"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
	StateFailed   = "failed"

	evStart   = "start"
	evStarted = "started"
	evStop    = "stop"
	evStopped = "stopped"
	evFail    = "fail"
)

//go:generate sh -c "cd ../../ && go run ./cmd/receiver -dump-fsm | dot -Nmargin=0.8 -s144 -Tsvg /dev/stdin -o fsm.svg"
func newFSM(ctx context.Context) *fsm.FSM {
	log := logger.Entry(ctx)
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StateStarting},
			{Name: evStarted, Src: []string{StateStarting}, Dst: StateRunning},
			{Name: evStop, Src: []string{StateStarting, StateRunning}, Dst: StateStopping},
			{Name: evStop, Src: []string{StateIdle}, Dst: StateStopped},
			{Name: evStopped, Src: []string{StateStopping}, Dst: StateStopped},
			{Name: evFail, Src: []string{StateStarting, StateStopping}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"after_event": func(e *fsm.Event) {
				if e.Src != e.Dst {
					log.WithFields(logrus.Fields{"src": e.Src, "dst": e.Dst}).Debug(e.Event)
				}
			},
		},
	)
}

// transition fires ev, ignoring events that do not apply to the current state.
func (c *Coordinator) transition(ev string) {
	err := c.fsm.Event(ev)
	if err == nil {
		return
	}
	switch err.(type) {
	case fsm.NoTransitionError, fsm.InvalidEventError:
		logger.Entry(c.ctx).WithError(err).Trace("transition")
	default:
		logger.Entry(c.ctx).WithError(err).Warn("transition")
	}
}

// State is the current lifecycle state.
func (c *Coordinator) State() string { return c.fsm.Current() }

// VisualizeLifecycle is the graphviz source of the lifecycle machine.
func VisualizeLifecycle() string {
	return fsm.Visualize(newFSM(context.Background()))
}
