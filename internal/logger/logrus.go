package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	ctxKeyLog ctxKey = iota
)

var std = logrus.New()

// Std returns the process logger used when a context carries no entry.
func Std() *logrus.Logger { return std }

// Entry returns the log entry stored in ctx, or a bare entry on the process logger.
func Entry(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(ctxKeyLog).(*logrus.Entry); ok && e != nil {
		return e
	}
	return logrus.NewEntry(std)
}

func WithLogEntry(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKeyLog, e)
}

// WithFields derives a child entry with fields and stores it back into the context.
func WithFields(ctx context.Context, fields logrus.Fields) (context.Context, *logrus.Entry) {
	e := Entry(ctx).WithFields(fields)
	return WithLogEntry(ctx, e), e
}

// SetLevel parses lvl and applies it to the process logger.
func SetLevel(lvl string) error {
	l, err := logrus.ParseLevel(lvl)
	if err != nil {
		return err
	}
	std.SetLevel(l)
	return nil
}
