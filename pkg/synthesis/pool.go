package synthesis

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/logging"
)

// Conn is the duplex provider connection the bridge drives for one segment.
// A gorilla *websocket.Conn satisfies it directly.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// DialFunc opens a fresh provider connection.
type DialFunc func(ctx context.Context) (Conn, error)

type PoolConfig struct {
	Size           int           `mapstructure:"size"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Size <= 0 {
		c.Size = 4
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	return c
}

// Pool bounds concurrent provider connections and hands out one per bridge
// invocation. Connections that errored during use must be released as
// damaged: the wire protocol has no mid-stream resynchronization.
type Pool struct {
	dial   DialFunc
	cfg    PoolConfig
	slots  chan struct{}
	idle   chan Conn
	closed atomic.Bool
	logger *slog.Logger
}

func NewPool(dial DialFunc, cfg PoolConfig) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		dial:   dial,
		cfg:    cfg,
		slots:  make(chan struct{}, cfg.Size),
		idle:   make(chan Conn, cfg.Size),
		logger: logging.NewComponentLogger(slog.Default(), "synthesis_pool"),
	}
	for i := 0; i < cfg.Size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Acquire blocks until a connection is available or the acquire timeout
// elapses. Idle connections are reused before new ones are dialed.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	if p.closed.Load() {
		return nil, errorsx.New("pool closed", errorsx.ReasonPoolClosed)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case <-p.slots:
	case <-timer.C:
		return nil, errorsx.New("no connection available within "+p.cfg.AcquireTimeout.String(), errorsx.ReasonPoolTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case conn := <-p.idle:
		return conn, nil
	default:
	}
	conn, err := p.dial(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}
	p.logger.Debug("dialed provider connection")
	return conn, nil
}

// Release returns a connection for reuse, or closes it when damaged.
func (p *Pool) Release(conn Conn, damaged bool) {
	if conn != nil {
		if damaged || p.closed.Load() {
			_ = conn.Close()
		} else {
			select {
			case p.idle <- conn:
			default:
				_ = conn.Close()
			}
		}
	}
	select {
	case p.slots <- struct{}{}:
	default:
	}
}

// Close discards idle connections and fails future acquisitions.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case conn := <-p.idle:
			_ = conn.Close()
		default:
			return
		}
	}
}
