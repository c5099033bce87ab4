package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonPoolTimeout)
	if Reason(err) != ReasonPoolTimeout {
		t.Fatalf("expected reason %s, got %s", ReasonPoolTimeout, Reason(err))
	}
	if !HasReason(err, ReasonPoolTimeout) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonSynthesisClose)
	second := Wrap(first, ReasonLeadUpdate)
	if Reason(second) != ReasonSynthesisClose {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestNewCarriesReason(t *testing.T) {
	err := New("no transport endpoint", ReasonTransferNoEndpoint)
	if !HasReason(err, ReasonTransferNoEndpoint) {
		t.Fatalf("expected transfer_no_endpoint, got %s", Reason(err))
	}
	if err.Error() != "no transport endpoint" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
