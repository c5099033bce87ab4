package leads

import "context"

// Lead is the caller-identifying record keyed by an opaque lead ID.
type Lead struct {
	LeadID    string
	Status    string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Comments  string
	Fields    map[string]string
}

// FullName joins the name parts for greeting personalization.
func (l Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}

// Store is the lead system contract. Fetch may legitimately return nil for
// an unknown caller; Update failures are non-fatal to call termination.
type Store interface {
	Fetch(ctx context.Context, phoneNumber string) (*Lead, error)
	Update(ctx context.Context, leadID, status, comments string) error
}
