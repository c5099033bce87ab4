package lily

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/lily/pkg/dialogue"
	"github.com/harunnryd/lily/pkg/frames"
	"github.com/harunnryd/lily/pkg/leads"
	"github.com/harunnryd/lily/pkg/logging"
	"github.com/harunnryd/lily/pkg/providers/deepgram"
	"github.com/harunnryd/lily/pkg/providers/resemble"
	"github.com/harunnryd/lily/pkg/redact"
	"github.com/harunnryd/lily/pkg/runner"
	"github.com/harunnryd/lily/pkg/session"
	"github.com/harunnryd/lily/pkg/synthesis"
	"github.com/harunnryd/lily/pkg/transports/twilio"
)

// Agent holds the process-wide collaborators shared across calls: the lead
// client, the transfer gateway, the synthesis pool and the drainer. Per-call
// state lives in CallSession.
type Agent struct {
	cfg     Config
	leads   *leads.Client
	gateway *twilio.Gateway
	pool    *synthesis.Pool
	bridge  *synthesis.Bridge
	frag    *dialogue.Fragmenter
	drainer *runner.SessionDrainer
	logger  *slog.Logger
}

func NewAgent(cfg Config) (*Agent, error) {
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	leadClient, err := leads.NewClient(cfg.Leads)
	if err != nil {
		return nil, err
	}
	gateway, err := twilio.NewGateway(cfg.Twilio)
	if err != nil {
		return nil, err
	}
	dial, err := resemble.DialFunc(cfg.Synthesis.Resemble)
	if err != nil {
		return nil, err
	}
	pool := synthesis.NewPool(dial, cfg.Synthesis.Pool)

	return &Agent{
		cfg:     cfg,
		leads:   leadClient,
		gateway: gateway,
		pool:    pool,
		bridge:  synthesis.NewBridge(pool, resemble.BridgeOptions(cfg.Synthesis.Resemble)),
		frag:    dialogue.NewFragmenter(dialogue.FragmenterConfig{}),
		drainer: runner.NewSessionDrainer(time.Duration(cfg.Agent.DrainTimeout) * time.Second),
		logger:  logging.NewComponentLogger(slog.Default(), "agent"),
	}, nil
}

// Drainer hangs up all live calls on shutdown.
func (a *Agent) Drainer() runner.Drainer { return a.drainer }

// Close releases the shared synthesis pool. Live calls should be drained
// first.
func (a *Agent) Close() {
	a.pool.Close()
}

// CallSession is one live call: its controller, its presence monitor and its
// outbound audio sink.
type CallSession struct {
	Lead         *leads.Lead
	Instructions string
	Controller   *session.Controller
	Presence     *deepgram.PresenceMonitor
	Sink         *synthesis.ChannelSink

	agent   *Agent
	callSID string
}

// StartCall assembles a session for an answered call. The lead is looked up
// by phone number; an unknown caller still gets a session, just without a
// record to disposition.
func (a *Agent) StartCall(ctx context.Context, callSID, phoneNumber string, llm dialogue.TokenStreamer) (*CallSession, error) {
	lead, err := a.leads.Fetch(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	leadID := ""
	callerName := ""
	if lead != nil {
		leadID = lead.LeadID
		callerName = lead.FullName()
	} else {
		a.logger.Warn("no lead for caller", slog.String("phone", redact.Phone(phoneNumber)))
	}

	call, err := twilio.NewCall(a.cfg.Twilio, callSID)
	if err != nil {
		return nil, err
	}

	sink := synthesis.NewChannelSink(callSID, a.cfg.Synthesis.Resemble.SampleRate, 0)
	ctrl := session.NewController(a.cfg.Session, leadID, session.Deps{
		Store:     a.leads,
		Call:      call,
		Gateway:   a.gateway,
		Announcer: &announcer{bridge: a.bridge, sink: sink},
		Estimator: dialogue.NewDebtEstimator(llm),
	})

	dgCfg := a.cfg.Deepgram
	dgCfg.CallSID = callSID
	presence := deepgram.NewPresenceMonitor(dgCfg, ctrl.OnVoiceActivity)
	if err := presence.Start(ctx); err != nil {
		return nil, err
	}

	a.drainer.Track(callSID, ctrl)
	a.logger.Info("call session started",
		slog.String("call_sid", callSID),
		slog.String("lead_id", leadID))

	return &CallSession{
		Lead:         lead,
		Instructions: dialogue.Instructions(callerName),
		Controller:   ctrl,
		Presence:     presence,
		Sink:         sink,
		agent:        a,
		callSID:      callSID,
	}, nil
}

// Speak synthesizes one dialogue turn: the token stream is fragmented into
// sentences and bridged to audio on the session's sink.
func (s *CallSession) Speak(ctx context.Context, tokens <-chan string) error {
	fragments := s.agent.frag.Fragments(tokens)
	return s.agent.bridge.Run(ctx, fragments, s.Sink)
}

// End tears the session down. Hangup is idempotent, so calling End after the
// controller already ended the call is safe.
func (s *CallSession) End(ctx context.Context) error {
	err := s.Controller.Hangup(ctx)
	_ = s.Presence.Close()
	s.agent.drainer.Forget(s.callSID)

	meta := map[string]string{frames.MetaCallSID: s.callSID}
	if s.Lead != nil {
		meta[frames.MetaLeadID] = s.Lead.LeadID
	}
	select {
	case s.Sink.Out <- frames.NewControlFrame("", time.Now().UnixNano(), frames.ControlHangup, meta):
	default:
	}
	return err
}

// announcer speaks a single fixed line through the synthesis bridge.
type announcer struct {
	bridge *synthesis.Bridge
	sink   synthesis.SegmentSink
}

func (a *announcer) Announce(ctx context.Context, text string) error {
	fragments := make(chan string, 1)
	fragments <- text
	close(fragments)
	return a.bridge.Run(ctx, fragments, a.sink)
}
