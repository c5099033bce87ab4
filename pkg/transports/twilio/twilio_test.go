package twilio

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/lily/pkg/errorsx"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeUpdater struct {
	sids   []string
	params []*api.UpdateCallParams
	err    error
}

func (f *fakeUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	f.sids = append(f.sids, sid)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &api.ApiV2010Call{}, nil
}

func TestCallReleaseCompletesCall(t *testing.T) {
	updater := &fakeUpdater{}
	call := &Call{sid: "CA123", client: updater, logger: slog.Default()}

	if err := call.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(updater.sids) != 1 || updater.sids[0] != "CA123" {
		t.Fatalf("unexpected update targets %v", updater.sids)
	}
	if updater.params[0].Status == nil || *updater.params[0].Status != "completed" {
		t.Fatalf("expected status completed")
	}
}

func TestGatewayTransferDialsDestination(t *testing.T) {
	updater := &fakeUpdater{}
	gw := &Gateway{client: updater, logger: slog.Default()}

	if err := gw.Transfer(context.Background(), "CA123", "+15551234567"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if updater.params[0].Twiml == nil || !strings.Contains(*updater.params[0].Twiml, "<Dial>+15551234567</Dial>") {
		t.Fatalf("expected dial twiml, got %+v", updater.params[0])
	}
}

func TestGatewayTransferNoEligibleLeg(t *testing.T) {
	updater := &fakeUpdater{}
	gw := &Gateway{client: updater, logger: slog.Default()}

	err := gw.Transfer(context.Background(), "", "+15551234567")
	if !errorsx.HasReason(err, errorsx.ReasonTransferNoEndpoint) {
		t.Fatalf("expected transfer_no_endpoint, got %v", err)
	}
	if len(updater.sids) != 0 {
		t.Fatalf("gateway must not touch the call without an identity")
	}
}
