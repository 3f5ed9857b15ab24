package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestEntryFallback(t *testing.T) {
	e := Entry(context.Background())
	require.NotNil(t, e)
	require.Equal(t, std, e.Logger)
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.Out = buf
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}

	ctx := WithLogEntry(context.Background(), logrus.NewEntry(l))
	ctx, e := WithFields(ctx, logrus.Fields{"component": "test"})
	require.Same(t, e, Entry(ctx))

	Entry(ctx).Info("hello")
	require.Contains(t, buf.String(), "component=test")
}

func TestSetLevel(t *testing.T) {
	defer std.SetLevel(std.GetLevel())
	require.NoError(t, SetLevel("trace"))
	require.Equal(t, logrus.TraceLevel, std.GetLevel())
	require.Error(t, SetLevel("loud"))
}
