package session

// Disposition classifies a call outcome. The values are the short codes the
// lead system stores verbatim.
type Disposition string

const (
	// DispositionNew marks a lead not yet contacted.
	DispositionNew Disposition = "NEW"
	// DispositionTransferred: customer qualified and handed to a specialist.
	DispositionTransferred Disposition = "XFER"
	// DispositionQualifiedNotTransferred: all criteria met but the call
	// ended before the transfer.
	DispositionQualifiedNotTransferred Disposition = "HL"
	// DispositionDebt7K10KHangup: debt between $7k and $10k, customer hung
	// up before transfer.
	DispositionDebt7K10KHangup Disposition = "815K"
	// DispositionDebtOver10KHangup: debt over $10k, customer hung up before
	// transfer.
	DispositionDebtOver10KHangup Disposition = "DOK"
	// DispositionImmediateHangup: call ended inside the engagement window.
	DispositionImmediateHangup Disposition = "HU"
	// DispositionNotInterested: customer declined the pitch.
	DispositionNotInterested Disposition = "NIBP"
	// DispositionLineBusy: line unavailable or voicemail reached.
	DispositionLineBusy Disposition = "BUSY"
	// DispositionDeadAir: inactivity timeout fired.
	DispositionDeadAir Disposition = "DAIR"
	// DispositionDoNotCall: customer invoked do-not-call.
	DispositionDoNotCall Disposition = "DNC"
	// DispositionLanguageBarrier: unable to communicate.
	DispositionLanguageBarrier Disposition = "LB"
	// DispositionNotQualified: failed the qualification criteria.
	DispositionNotQualified Disposition = "NQ"
	// DispositionNoDebt: no qualifying debt.
	DispositionNoDebt Disposition = "ND"
	// DispositionWrongNumber: reached an incorrect contact.
	DispositionWrongNumber Disposition = "WN"
	// DispositionCallbackScheduled: customer requested a callback.
	DispositionCallbackScheduled Disposition = "CALLBK"
)

// Terminal reports whether the disposition ends the lead's lifecycle for
// this call. Only NEW is non-terminal.
func (d Disposition) Terminal() bool {
	return d != DispositionNew && d != ""
}
