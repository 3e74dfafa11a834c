package recognizer

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeDialer(calls *atomic.Int32) DialFunc {
	return func(_ context.Context, _, _ string) (net.Conn, error) {
		calls.Add(1)
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}
}

func TestProbe_OnlineIsCachedForTTL(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewProbe("", 0, 10*time.Second).WithDialer(pipeDialer(&calls))
	p.now = func() time.Time { return now }

	assert.True(t, p.Online(context.Background()))
	assert.True(t, p.Online(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(11 * time.Second)
	assert.True(t, p.Online(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestProbe_Offline(t *testing.T) {
	p := NewProbe("", time.Millisecond, 0).WithDialer(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no route to host")
	})

	err := p.Check(context.Background())
	require.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.False(t, p.Online(context.Background()))
}

func TestProbe_DialsConfiguredAddress(t *testing.T) {
	var got string
	p := NewProbe("10.0.0.1:53", 0, 0).WithDialer(func(_ context.Context, network, addr string) (net.Conn, error) {
		got = network + " " + addr
		return nil, errors.New("refused")
	})
	_ = p.Check(context.Background())
	assert.Equal(t, "tcp 10.0.0.1:53", got)
}

func TestProbe_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	var calls atomic.Int32
	p := NewProbe("", time.Second, 10*time.Second).WithDialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Check(ctx))

	assert.True(t, p.Online(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProbe_DialIsBoundedByTimeout(t *testing.T) {
	p := NewProbe("", 20*time.Millisecond, 0).WithDialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	err := p.Check(context.Background())
	require.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
