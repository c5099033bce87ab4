package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/lily/pkg/errorsx"
)

func TestPoolAcquireTimeout(t *testing.T) {
	conn := newFakeConn()
	pool := NewPool(func(ctx context.Context) (Conn, error) {
		return conn, nil
	}, PoolConfig{Size: 1, AcquireTimeout: 20 * time.Millisecond})

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := pool.Acquire(context.Background()); !errorsx.HasReason(err, errorsx.ReasonPoolTimeout) {
		t.Fatalf("expected pool_timeout, got %v", err)
	}

	pool.Release(first, false)
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestPoolReusesHealthyConnections(t *testing.T) {
	dialed := 0
	pool := NewPool(func(ctx context.Context) (Conn, error) {
		dialed++
		return newFakeConn(), nil
	}, PoolConfig{Size: 2, AcquireTimeout: time.Second})

	conn, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	pool.Release(conn, false)

	again, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if again != conn {
		t.Fatalf("expected idle connection reuse")
	}
	if dialed != 1 {
		t.Fatalf("expected one dial, got %d", dialed)
	}
}

func TestPoolCloseFailsAcquire(t *testing.T) {
	pool := NewPool(func(ctx context.Context) (Conn, error) {
		return newFakeConn(), nil
	}, PoolConfig{Size: 1, AcquireTimeout: time.Second})
	pool.Close()
	if _, err := pool.Acquire(context.Background()); !errorsx.HasReason(err, errorsx.ReasonPoolClosed) {
		t.Fatalf("expected pool_closed, got %v", err)
	}
}
