package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/lily/pkg/dialogue"
	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/logging"
	"github.com/harunnryd/lily/pkg/transports"
)

// LeadStore is the narrow CRM contract the controller depends on. Update
// failures are non-fatal to call termination.
type LeadStore interface {
	Update(ctx context.Context, leadID, status, comments string) error
}

// Announcer speaks a line to the remote party via the dialogue layer.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// DebtEstimator extracts the customer's debt amount from the conversation
// history after the call ends. Returns the raw model output.
type DebtEstimator interface {
	EstimateDebt(ctx context.Context) (string, error)
}

type Config struct {
	InactivityWindow    time.Duration `mapstructure:"inactivity_window"`
	TransferDestination string        `mapstructure:"transfer_destination"`
	HoldAnnouncement    string        `mapstructure:"hold_announcement"`
	DebtUpperBound      int           `mapstructure:"debt_upper_bound"`
	DebtLowerBound      int           `mapstructure:"debt_lower_bound"`
}

func (c Config) withDefaults() Config {
	if c.InactivityWindow <= 0 {
		c.InactivityWindow = 10 * time.Second
	}
	if c.HoldAnnouncement == "" {
		c.HoldAnnouncement = dialogue.HoldAnnouncement
	}
	if c.DebtUpperBound <= 0 {
		c.DebtUpperBound = 10_000
	}
	if c.DebtLowerBound <= 0 {
		c.DebtLowerBound = 7_000
	}
	return c
}

// QualificationFlags are the three facts required before a transfer.
type QualificationFlags struct {
	HandlesBills        bool
	DebtAmountConfirmed bool
	UnsecuredConfirmed  bool
}

func (f QualificationFlags) Qualified() bool {
	return f.HandlesBills && f.DebtAmountConfirmed && f.UnsecuredConfirmed
}

// Deps are the external collaborators of one call session.
type Deps struct {
	Store     LeadStore
	Call      transports.Call
	Gateway   transports.TransferGateway
	Announcer Announcer
	Estimator DebtEstimator
}

// Controller owns one call's disposition state machine, the inactivity
// timer, and the single chokepoint for ending the call. Hangup runs its
// cleanup at most once regardless of which path triggered it.
type Controller struct {
	cfg  Config
	deps Deps

	mu          sync.Mutex
	leadID      string
	disposition Disposition
	debtAmount  int
	flags       QualificationFlags
	hungup      bool
	inactivity  *time.Timer

	logger *slog.Logger
}

func NewController(cfg Config, leadID string, deps Deps) *Controller {
	return &Controller{
		cfg:         cfg.withDefaults(),
		deps:        deps,
		leadID:      leadID,
		disposition: DispositionNew,
		logger: logging.NewComponentLogger(slog.Default(), "call_session").With(
			slog.String("lead_id", leadID)),
	}
}

// SetHandlesBills records whether the remote party handles the bills.
func (c *Controller) SetHandlesBills(v bool) {
	c.mu.Lock()
	c.flags.HandlesBills = v
	c.mu.Unlock()
}

// ConfirmDebtAmount records the stated combined debt amount.
func (c *Controller) ConfirmDebtAmount(amount int) {
	c.mu.Lock()
	c.flags.DebtAmountConfirmed = true
	c.debtAmount = amount
	c.mu.Unlock()
}

// ConfirmUnsecured records whether the debt is unsecured.
func (c *Controller) ConfirmUnsecured(v bool) {
	c.mu.Lock()
	c.flags.UnsecuredConfirmed = v
	c.mu.Unlock()
}

func (c *Controller) Flags() QualificationFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

func (c *Controller) Disposition() Disposition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposition
}

// RequestDisposition records the most specific known outcome. After hangup
// has completed it is a logged no-op: late dialogue callbacks racing the
// inactivity timer are expected.
func (c *Controller) RequestDisposition(code Disposition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		c.logger.Debug("disposition ignored after hangup", slog.String("code", string(code)))
		return
	}
	c.disposition = code
}

// Hangup is the only path that ends the call. It is idempotent, always
// updates the lead record before releasing the transport, and never fails
// on a bookkeeping error: the call must end even if the CRM update doesn't.
func (c *Controller) Hangup(ctx context.Context) error {
	c.mu.Lock()
	if c.hungup {
		c.mu.Unlock()
		return nil
	}
	c.hungup = true
	if c.inactivity != nil {
		c.inactivity.Stop()
		c.inactivity = nil
	}
	leadID := c.leadID
	disposition := c.disposition
	comments := c.commentsLocked()
	c.mu.Unlock()

	if leadID != "" {
		if err := c.deps.Store.Update(ctx, leadID, string(disposition), comments); err != nil {
			c.logger.Error("lead update failed",
				slog.String("disposition", string(disposition)),
				slog.String("error", err.Error()))
		}
	} else {
		c.logger.Warn("no lead to update", slog.String("disposition", string(disposition)))
	}

	if err := c.deps.Call.Release(ctx); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCallRelease)
	}
	c.logger.Info("call ended", slog.String("disposition", string(disposition)))
	return nil
}

// TransferAndHangup hands a fully qualified call to the specialist
// destination. A gateway failure leaves the call up; the dialogue layer
// decides what to say next.
func (c *Controller) TransferAndHangup(ctx context.Context, debtAmount int) error {
	c.mu.Lock()
	qualified := c.flags.Qualified()
	c.mu.Unlock()
	if !qualified {
		return errorsx.New("transfer requires full qualification", errorsx.ReasonTransferFailed)
	}

	if c.deps.Announcer != nil {
		if err := c.deps.Announcer.Announce(ctx, c.cfg.HoldAnnouncement); err != nil {
			c.logger.Warn("hold announcement failed", slog.String("error", err.Error()))
		}
	}

	identity := c.deps.Call.Identity()
	if err := c.deps.Gateway.Transfer(ctx, identity, c.cfg.TransferDestination); err != nil {
		if errorsx.HasReason(err, errorsx.ReasonTransferNoEndpoint) {
			return err
		}
		return errorsx.Wrap(err, errorsx.ReasonTransferFailed)
	}

	c.mu.Lock()
	c.disposition = DispositionTransferred
	c.debtAmount = debtAmount
	c.mu.Unlock()
	return c.Hangup(ctx)
}

// OnVoiceActivity arms the inactivity timer on an "away" transition and
// cancels it when the remote party is present again. Re-arming replaces the
// pending timer; at most one is outstanding per session.
func (c *Controller) OnVoiceActivity(present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		return
	}
	if c.inactivity != nil {
		c.inactivity.Stop()
		c.inactivity = nil
	}
	if !present {
		c.inactivity = time.AfterFunc(c.cfg.InactivityWindow, c.onInactivity)
	}
}

func (c *Controller) onInactivity() {
	c.mu.Lock()
	if c.hungup {
		c.mu.Unlock()
		return
	}
	c.disposition = DispositionDeadAir
	c.mu.Unlock()
	c.logger.Info("inactivity window elapsed")
	_ = c.Hangup(context.Background())
}

// VoicemailDetected ends a call that reached an answering machine.
func (c *Controller) VoicemailDetected(ctx context.Context) error {
	c.RequestDisposition(DispositionLineBusy)
	return c.Hangup(ctx)
}

// ExternalHangup handles the remote party ending the call before an
// explicit transfer: the debt amount is extracted from the conversation
// history and classified by threshold. An unparseable extraction is a
// classification error; the cleanup still runs with the disposition the
// session already has, and no bucket is guessed.
func (c *Controller) ExternalHangup(ctx context.Context) error {
	c.mu.Lock()
	skip := c.hungup || c.disposition == DispositionQualifiedNotTransferred
	c.mu.Unlock()
	if skip {
		return c.Hangup(ctx)
	}

	raw, err := c.deps.Estimator.EstimateDebt(ctx)
	if err != nil {
		_ = c.Hangup(ctx)
		return errorsx.Wrap(err, errorsx.ReasonClassification)
	}
	amount, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.logger.Error("debt extraction not numeric", slog.String("raw", raw))
		_ = c.Hangup(ctx)
		return errorsx.New(fmt.Sprintf("debt extraction not numeric: %q", raw), errorsx.ReasonClassification)
	}

	var code Disposition
	switch {
	case amount > c.cfg.DebtUpperBound:
		code = DispositionDebtOver10KHangup
	case amount > c.cfg.DebtLowerBound:
		code = DispositionDebt7K10KHangup
	default:
		code = DispositionImmediateHangup
	}

	c.mu.Lock()
	c.debtAmount = amount
	c.disposition = code
	c.mu.Unlock()
	return c.Hangup(ctx)
}

// commentsLocked must be called with c.mu held.
func (c *Controller) commentsLocked() string {
	if c.disposition != DispositionTransferred && c.disposition != DispositionQualifiedNotTransferred {
		return ""
	}
	return fmt.Sprintf("Total Debt: %d\nDecision Maker: %t\nUnsecured: %t",
		c.debtAmount, c.flags.HandlesBills, c.flags.UnsecuredConfirmed)
}
