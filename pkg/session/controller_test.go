package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/lily/pkg/errorsx"
)

type fakeStore struct {
	mu      sync.Mutex
	updates []string
	status  []string
	err     error
	order   *[]string
}

func (s *fakeStore) Update(ctx context.Context, leadID, status, comments string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, leadID)
	s.status = append(s.status, status)
	if s.order != nil {
		*s.order = append(*s.order, "update")
	}
	return s.err
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type fakeCall struct {
	mu       sync.Mutex
	identity string
	releases int
	order    *[]string
}

func (c *fakeCall) Identity() string { return c.identity }

func (c *fakeCall) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	if c.order != nil {
		*c.order = append(*c.order, "release")
	}
	return nil
}

func (c *fakeCall) released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

type fakeGateway struct {
	identities   []string
	destinations []string
	err          error
}

func (g *fakeGateway) Transfer(ctx context.Context, callIdentity, destination string) error {
	g.identities = append(g.identities, callIdentity)
	g.destinations = append(g.destinations, destination)
	return g.err
}

type fakeAnnouncer struct {
	lines []string
}

func (a *fakeAnnouncer) Announce(ctx context.Context, text string) error {
	a.lines = append(a.lines, text)
	return nil
}

type fakeEstimator struct {
	raw string
	err error
}

func (e *fakeEstimator) EstimateDebt(ctx context.Context) (string, error) {
	return e.raw, e.err
}

func newTestController(cfg Config, deps Deps) *Controller {
	if deps.Store == nil {
		deps.Store = &fakeStore{}
	}
	if deps.Call == nil {
		deps.Call = &fakeCall{identity: "CA123"}
	}
	if deps.Gateway == nil {
		deps.Gateway = &fakeGateway{}
	}
	if deps.Estimator == nil {
		deps.Estimator = &fakeEstimator{raw: "0"}
	}
	return NewController(cfg, "lead-8", deps)
}

func TestHangupRunsCleanupExactlyOnce(t *testing.T) {
	var order []string
	store := &fakeStore{order: &order}
	call := &fakeCall{identity: "CA123", order: &order}
	ctrl := newTestController(Config{}, Deps{Store: store, Call: call})
	ctrl.RequestDisposition(DispositionNotInterested)

	if err := ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	if err := ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("second hangup: %v", err)
	}

	if store.count() != 1 || call.released() != 1 {
		t.Fatalf("expected one update and one release, got %d/%d", store.count(), call.released())
	}
	if len(order) != 2 || order[0] != "update" || order[1] != "release" {
		t.Fatalf("expected lead update before release, got %v", order)
	}
	if store.status[0] != string(DispositionNotInterested) {
		t.Fatalf("expected NIBP status, got %s", store.status[0])
	}
}

func TestHangupReleasesDespiteStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("crm down")}
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{}, Deps{Store: store, Call: call})

	if err := ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("hangup must not fail on bookkeeping error: %v", err)
	}
	if call.released() != 1 {
		t.Fatalf("expected release despite store failure")
	}
}

func TestConcurrentHangupCollapses(t *testing.T) {
	store := &fakeStore{}
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{}, Deps{Store: store, Call: call})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ctrl.Hangup(context.Background())
		}()
	}
	wg.Wait()

	if store.count() != 1 || call.released() != 1 {
		t.Fatalf("concurrent hangups must collapse, got %d/%d", store.count(), call.released())
	}
}

func TestInactivityTimerFiresDeadAir(t *testing.T) {
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{InactivityWindow: 20 * time.Millisecond}, Deps{Call: call})

	ctrl.OnVoiceActivity(false)
	time.Sleep(80 * time.Millisecond)

	if ctrl.Disposition() != DispositionDeadAir {
		t.Fatalf("expected DAIR, got %s", ctrl.Disposition())
	}
	if call.released() != 1 {
		t.Fatalf("expected hangup after inactivity")
	}
}

func TestPresenceCancelsInactivityTimer(t *testing.T) {
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{InactivityWindow: 30 * time.Millisecond}, Deps{Call: call})

	ctrl.OnVoiceActivity(false)
	time.Sleep(10 * time.Millisecond)
	ctrl.OnVoiceActivity(true)
	time.Sleep(80 * time.Millisecond)

	if ctrl.Disposition() == DispositionDeadAir {
		t.Fatalf("DAIR must never be set after a present transition")
	}
	if call.released() != 0 {
		t.Fatalf("call must stay up")
	}
}

func TestRearmReplacesTimer(t *testing.T) {
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{InactivityWindow: 30 * time.Millisecond}, Deps{Call: call})

	ctrl.OnVoiceActivity(false)
	time.Sleep(10 * time.Millisecond)
	ctrl.OnVoiceActivity(false)
	time.Sleep(100 * time.Millisecond)

	if call.released() != 1 {
		t.Fatalf("re-arming must replace, not stack: got %d releases", call.released())
	}
}

func TestTransferAndHangupQualified(t *testing.T) {
	store := &fakeStore{}
	call := &fakeCall{identity: "CA123"}
	gw := &fakeGateway{}
	annc := &fakeAnnouncer{}
	cfg := Config{TransferDestination: "+15557654321"}
	ctrl := newTestController(cfg, Deps{Store: store, Call: call, Gateway: gw, Announcer: annc})
	ctrl.SetHandlesBills(true)
	ctrl.ConfirmDebtAmount(15000)
	ctrl.ConfirmUnsecured(true)

	if err := ctrl.TransferAndHangup(context.Background(), 15000); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(gw.identities) != 1 || gw.identities[0] != "CA123" || gw.destinations[0] != "+15557654321" {
		t.Fatalf("unexpected gateway call %v %v", gw.identities, gw.destinations)
	}
	if len(annc.lines) != 1 {
		t.Fatalf("expected hold announcement")
	}
	if ctrl.Disposition() != DispositionTransferred {
		t.Fatalf("expected XFER, got %s", ctrl.Disposition())
	}
	if call.released() != 1 || store.count() != 1 {
		t.Fatalf("expected hangup cleanup once")
	}
	if !strings.Contains(store.status[0], "XFER") {
		t.Fatalf("expected XFER persisted, got %s", store.status[0])
	}
}

func TestTransferRequiresQualification(t *testing.T) {
	gw := &fakeGateway{}
	ctrl := newTestController(Config{}, Deps{Gateway: gw})
	ctrl.SetHandlesBills(true)

	if err := ctrl.TransferAndHangup(context.Background(), 9000); err == nil {
		t.Fatalf("expected error without full qualification")
	}
	if len(gw.identities) != 0 {
		t.Fatalf("gateway must never be invoked unqualified")
	}
}

func TestTransferNoEligibleEndpointKeepsCallUp(t *testing.T) {
	call := &fakeCall{identity: ""}
	gw := &fakeGateway{err: errorsx.New("no eligible transport endpoint", errorsx.ReasonTransferNoEndpoint)}
	ctrl := newTestController(Config{}, Deps{Call: call, Gateway: gw})
	ctrl.SetHandlesBills(true)
	ctrl.ConfirmDebtAmount(9000)
	ctrl.ConfirmUnsecured(true)

	err := ctrl.TransferAndHangup(context.Background(), 9000)
	if !errorsx.HasReason(err, errorsx.ReasonTransferNoEndpoint) {
		t.Fatalf("expected transfer_no_endpoint, got %v", err)
	}
	if call.released() != 0 {
		t.Fatalf("call must not be ended on a failed transfer")
	}
	if ctrl.Disposition() == DispositionTransferred {
		t.Fatalf("disposition must not advance on failed transfer")
	}
}

func TestExternalHangupClassifiesDebt(t *testing.T) {
	cases := []struct {
		raw  string
		want Disposition
	}{
		{"12000", DispositionDebtOver10KHangup},
		{"8000", DispositionDebt7K10KHangup},
		{"500", DispositionImmediateHangup},
	}
	for _, tc := range cases {
		call := &fakeCall{identity: "CA123"}
		ctrl := newTestController(Config{}, Deps{Call: call, Estimator: &fakeEstimator{raw: tc.raw}})
		if err := ctrl.ExternalHangup(context.Background()); err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if ctrl.Disposition() != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.raw, tc.want, ctrl.Disposition())
		}
		if call.released() != 1 {
			t.Fatalf("%s: expected release", tc.raw)
		}
	}
}

func TestExternalHangupNonNumericIsFatal(t *testing.T) {
	call := &fakeCall{identity: "CA123"}
	ctrl := newTestController(Config{}, Deps{Call: call, Estimator: &fakeEstimator{raw: "around 12k"}})

	err := ctrl.ExternalHangup(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
	if ctrl.Disposition() != DispositionNew {
		t.Fatalf("no disposition may be defaulted, got %s", ctrl.Disposition())
	}
	if call.released() != 1 {
		t.Fatalf("cleanup must still run once")
	}
}

func TestExternalHangupSkipsClassificationWhenQualified(t *testing.T) {
	store := &fakeStore{}
	ctrl := newTestController(Config{}, Deps{Store: store, Estimator: &fakeEstimator{err: errors.New("must not be called")}})
	ctrl.RequestDisposition(DispositionQualifiedNotTransferred)

	if err := ctrl.ExternalHangup(context.Background()); err != nil {
		t.Fatalf("external hangup: %v", err)
	}
	if store.status[0] != string(DispositionQualifiedNotTransferred) {
		t.Fatalf("expected HL persisted, got %s", store.status[0])
	}
}

func TestRequestDispositionAfterHangupIsNoop(t *testing.T) {
	ctrl := newTestController(Config{}, Deps{})
	ctrl.RequestDisposition(DispositionNotInterested)
	_ = ctrl.Hangup(context.Background())
	ctrl.RequestDisposition(DispositionDoNotCall)

	if ctrl.Disposition() != DispositionNotInterested {
		t.Fatalf("disposition changed after hangup")
	}
}

func TestVoicemailDetected(t *testing.T) {
	store := &fakeStore{}
	ctrl := newTestController(Config{}, Deps{Store: store})

	if err := ctrl.VoicemailDetected(context.Background()); err != nil {
		t.Fatalf("voicemail: %v", err)
	}
	if store.status[0] != string(DispositionLineBusy) {
		t.Fatalf("expected BUSY, got %s", store.status[0])
	}
}
