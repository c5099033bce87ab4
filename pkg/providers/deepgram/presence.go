package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/frames"
	"github.com/harunnryd/lily/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        bool   `mapstructure:"interim"`
	UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
	CallSID        string `mapstructure:"-"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.UtteranceEndMS == 0 {
		c.UtteranceEndMS = 1000
	}
	return c
}

// PresenceFunc receives voice activity transitions. present=true on speech
// start, present=false when an utterance ends.
type PresenceFunc func(present bool)

// PresenceMonitor streams call audio to Deepgram and reports the remote
// party's voice activity alongside finalized transcripts. VAD events drive
// the session's inactivity handling; transcripts feed the dialogue layer.
type PresenceMonitor struct {
	cfg        Config
	dgClient   *client.WSCallback
	onPresence PresenceFunc
	out        chan frames.Frame
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	metaLogged bool
	logger     *slog.Logger
}

func NewPresenceMonitor(cfg Config, onPresence PresenceFunc) *PresenceMonitor {
	cfg = cfg.withDefaults()
	return &PresenceMonitor{
		cfg:        cfg,
		onPresence: onPresence,
		out:        make(chan frames.Frame, 256),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_presence").With(
			slog.String("call_sid", cfg.CallSID)),
	}
}

func (m *PresenceMonitor) Name() string { return "deepgram_presence" }

func (m *PresenceMonitor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.pipeReader, m.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          m.cfg.Model,
		Language:       m.cfg.Language,
		Encoding:       m.cfg.Encoding,
		SampleRate:     m.cfg.SampleRate,
		InterimResults: m.cfg.Interim,
		VadEvents:      true,
		SmartFormat:    true,
		UtteranceEndMs: fmt.Sprintf("%d", m.cfg.UtteranceEndMS),
	}

	m.logger.Info("initializing deepgram connection",
		slog.String("model", m.cfg.Model),
		slog.Int("sample_rate", m.cfg.SampleRate),
		slog.Int("utterance_end_ms", m.cfg.UtteranceEndMS))

	cb := &callback{parent: m}
	dgClient, err := client.NewWSUsingCallback(m.ctx, m.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPresenceConnect)
	}
	m.dgClient = dgClient

	if connected := m.dgClient.Connect(); !connected {
		return errorsx.New("deepgram connection failed", errorsx.ReasonPresenceConnect)
	}
	m.logger.Info("deepgram_connected", slog.String("model", m.cfg.Model))

	go func() {
		if err := m.dgClient.Stream(m.pipeReader); err != nil && m.ctx.Err() == nil {
			m.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (m *PresenceMonitor) Close() error {
	m.logger.Info("closing deepgram connection")
	if m.cancel != nil {
		m.cancel()
	}
	if m.pipeWriter != nil {
		_ = m.pipeWriter.Close()
	}
	if m.dgClient != nil {
		m.dgClient.Stop()
	}
	return nil
}

// SendAudio forwards one inbound audio frame to the recognizer.
func (m *PresenceMonitor) SendAudio(frame frames.AudioFrame) error {
	if m.pipeWriter == nil {
		return fmt.Errorf("not started")
	}
	_, err := m.pipeWriter.Write(frame.RawPayload())
	if err != nil {
		m.logger.Error("failed to send audio to deepgram", slog.String("error", err.Error()))
	}
	return err
}

// Transcripts returns finalized and interim transcript frames.
func (m *PresenceMonitor) Transcripts() <-chan frames.Frame { return m.out }

func (m *PresenceMonitor) emitPresence(present bool) {
	if m.onPresence != nil {
		m.onPresence(present)
	}
}

// --- Callback Implementation ---

type callback struct {
	parent *PresenceMonitor
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal

	meta := map[string]string{
		frames.MetaCallSID: c.parent.cfg.CallSID,
		frames.MetaSource:  "presence",
	}
	c.parent.logger.Debug("transcript_received",
		slog.String("transcript", transcript),
		slog.Bool("is_final", isFinal))

	f := frames.NewTextFrame("", time.Now().UnixNano(), transcript, meta)
	select {
	case c.parent.out <- f:
	default:
		c.parent.logger.Warn("deepgram_out_channel_full")
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received",
			slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	c.parent.emitPresence(true)
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event",
		slog.Int("utterance_end_ms", c.parent.cfg.UtteranceEndMS))
	c.parent.emitPresence(false)
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("data", string(byData)))
	return nil
}
