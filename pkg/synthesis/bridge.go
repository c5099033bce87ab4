package synthesis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/logging"
)

type Options struct {
	VoiceID      string
	SampleRate   int
	Exaggeration float64
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 24000
	}
	if o.Exaggeration <= 0 {
		o.Exaggeration = 0.7
	}
	return o
}

// Bridge adapts a lazy sequence of text fragments into a lazy sequence of
// audio chunks over one pooled duplex connection. Each Run call owns exactly
// one segment and one leased connection.
type Bridge struct {
	pool   *Pool
	opts   Options
	logger *slog.Logger
}

func NewBridge(pool *Pool, opts Options) *Bridge {
	return &Bridge{
		pool:   pool,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(slog.Default(), "synthesis_bridge"),
	}
}

// progress is the only state shared between feeder and collector: lastIndex
// is written by the feeder, latestAck by the collector, and inputEnded flips
// once when the fragment stream is exhausted. The completion rule is
// re-evaluated on both sides of the race: every acknowledgement checks it,
// and so does the input-end flip, so a final ack that arrives before the
// stream is known to be exhausted is never lost.
type progress struct {
	mu         sync.Mutex
	lastIndex  int
	latestAck  int
	inputEnded bool
	completed  bool

	startOnce sync.Once
	started   chan struct{}
	done      chan struct{}
}

func newProgress() *progress {
	return &progress{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (p *progress) advance() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastIndex++
	return p.lastIndex
}

// markStarted signals that the first request is on the wire.
func (p *progress) markStarted() {
	p.startOnce.Do(func() { close(p.started) })
}

// finish flips inputEnded and, when the final acknowledgement already
// arrived, signals completion on done so the segment still closes.
func (p *progress) finish() {
	p.mu.Lock()
	p.inputEnded = true
	complete := p.completeLocked()
	p.mu.Unlock()
	if complete {
		close(p.done)
	}
}

func (p *progress) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastIndex
}

// ack records the latest acknowledged request and reports whether this
// acknowledgement completed the segment: the last-sent request is
// acknowledged and no fragments remain.
func (p *progress) ack(requestID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latestAck = requestID
	return p.completeLocked()
}

// completeLocked transitions to completed when the rule holds. It returns
// true at most once across both callers; p.mu must be held.
func (p *progress) completeLocked() bool {
	if p.completed || !p.inputEnded || p.lastIndex == 0 || p.latestAck != p.lastIndex {
		return false
	}
	p.completed = true
	return true
}

// Run leases a connection, opens a segment on sink and drives the feeder and
// collector to completion. If either side fails the connection is closed to
// unblock the sibling, both goroutines are awaited, and the connection is
// released as damaged.
func (b *Bridge) Run(ctx context.Context, fragments <-chan string, sink SegmentSink) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	segmentID := uuid.NewString()
	sink.StartSegment(segmentID)
	logger := b.logger.With(slog.String("segment_id", segmentID))

	prog := newProgress()
	feedDone := make(chan error, 1)
	go func() { feedDone <- b.feed(ctx, conn, fragments, prog, logger) }()

	// The collector has nothing to read before the first request is on the
	// wire, so it starts lazily. An empty fragment stream or a failed send
	// resolves here without ever parking a reader on the connection, and an
	// untouched connection goes back to the pool healthy.
	var collectDone chan error
	select {
	case <-prog.started:
		collectDone = make(chan error, 1)
		go func() { collectDone <- b.collect(conn, sink, prog, logger) }()
	case err := <-feedDone:
		feedDone = nil
		if err != nil {
			b.pool.Release(conn, true)
			logger.Error("segment failed",
				slog.String("reason", string(errorsx.Reason(err))),
				slog.String("error", err.Error()))
			return err
		}
		if prog.sent() == 0 {
			sink.EndSegment()
			b.pool.Release(conn, false)
			logger.Debug("segment complete", slog.Int("requests", 0))
			return nil
		}
		// The feeder already drained the stream; acknowledgements are
		// still outstanding.
		collectDone = make(chan error, 1)
		go func() { collectDone <- b.collect(conn, sink, prog, logger) }()
	}

	var runErr error
	damaged := false
	induced := false
	done := prog.done
	for feedDone != nil || collectDone != nil {
		var err error
		select {
		case err = <-feedDone:
			feedDone = nil
		case err = <-collectDone:
			collectDone = nil
		case <-done:
			// The final acknowledgement was consumed before the fragment
			// stream was known to be exhausted. Nothing more will arrive:
			// close the segment here and unblock the parked collector.
			done = nil
			if runErr == nil {
				sink.EndSegment()
				induced = true
				damaged = true
				_ = conn.Close()
			}
			continue
		}
		if err != nil && runErr == nil && !induced {
			runErr = err
			damaged = true
			induced = true
			cancel()
			_ = conn.Close()
		}
	}

	b.pool.Release(conn, damaged)
	if runErr != nil {
		logger.Error("segment failed",
			slog.String("reason", string(errorsx.Reason(runErr))),
			slog.String("error", runErr.Error()))
		return runErr
	}
	logger.Debug("segment complete", slog.Int("requests", prog.sent()))
	return nil
}

// feed consumes the fragment stream to exhaustion, sending one request per
// fragment. It never closes the connection; exhaustion only flips inputEnded.
func (b *Bridge) feed(ctx context.Context, conn Conn, fragments <-chan string, prog *progress, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-fragments:
			if !ok {
				prog.finish()
				return nil
			}
			req := Request{
				VoiceID:      b.opts.VoiceID,
				Data:         fmt.Sprintf("<speak exaggeration='%.1f'>%s</speak>", b.opts.Exaggeration, text),
				RequestID:    prog.advance(),
				SampleRate:   b.opts.SampleRate,
				Precision:    "PCM_16",
				OutputFormat: "mp3",
			}
			if err := conn.WriteJSON(req); err != nil {
				return errorsx.Wrap(err, errorsx.ReasonSynthesisSend)
			}
			prog.markStarted()
			logger.Debug("synthesis request sent", slog.Int("request_id", req.RequestID))
		}
	}
}

// collect reads provider messages until an acknowledgement completes the
// segment. A transport-level close before that is fatal for the segment.
func (b *Bridge) collect(conn Conn, sink SegmentSink, prog *progress, logger *slog.Logger) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return errorsx.Wrap(fmt.Errorf("provider connection closed: %w", err), errorsx.ReasonSynthesisClose)
		}
		if msgType != websocket.TextMessage {
			logger.Warn("unexpected provider message type", slog.Int("type", msgType))
			continue
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("provider payload not json", slog.String("error", err.Error()))
			continue
		}
		switch msg.Type {
		case messageTypeAudio:
			if msg.AudioContent == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(msg.AudioContent)
			if err != nil {
				logger.Error("audio decode error", slog.String("error", err.Error()))
				continue
			}
			sink.Push(raw)
		case messageTypeAudioEnd:
			if prog.ack(msg.RequestID) {
				sink.EndSegment()
				return nil
			}
		default:
			logger.Debug("ignoring provider message", slog.String("type", msg.Type))
		}
	}
}
