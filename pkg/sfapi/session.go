package sfapi

import (
	"context"
	"time"
)

// Session is the authenticated state every data request depends on: the
// bearer token plus the instance URL the credential exchange routed us to.
// A Session is immutable once issued; refresh produces a new one.
type Session struct {
	AccessToken string
	InstanceURL string
	IssuedAt    time.Time
}

// CredentialSource exchanges stored credentials for a fresh Session. The
// client calls it on first use and again on expiry; a source that cannot
// repeat the exchange returns ErrCannotRefresh.
//
// Implementations must be safe for concurrent use, though the client
// collapses concurrent refreshes into one call.
type CredentialSource interface {
	Authenticate(ctx context.Context) (*Session, error)
}
