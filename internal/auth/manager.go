package auth

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"golang.org/x/sync/singleflight"
)

// Manager owns the shared session. Every sub-client reads its credential
// through the manager, and expiry-triggered refreshes are collapsed: any
// number of concurrent requests observing a stale session produce exactly
// one credential exchange, whose outcome all of them share.
type Manager struct {
	source sfapi.CredentialSource
	logger sfapi.Logger

	mutex   sync.RWMutex
	session *sfapi.Session

	group singleflight.Group
}

// NewManager creates a Manager around a credential source.
func NewManager(source sfapi.CredentialSource, logger sfapi.Logger) *Manager {
	if logger == nil {
		logger = sfapi.NoopLogger{}
	}

	return &Manager{source: source, logger: logger}
}

// Session returns the current session, performing the initial credential
// exchange on first use.
func (m *Manager) Session(ctx context.Context) (*sfapi.Session, error) {
	m.mutex.RLock()
	current := m.session
	m.mutex.RUnlock()

	if current != nil {
		return current, nil
	}

	return m.refresh(ctx)
}

// Refresh exchanges credentials for a new session after stale was rejected.
// If another goroutine already replaced stale, its session is returned
// without a second exchange; concurrent callers holding the same stale
// session join one in-flight exchange.
func (m *Manager) Refresh(ctx context.Context, stale *sfapi.Session) (*sfapi.Session, error) {
	m.mutex.RLock()
	current := m.session
	m.mutex.RUnlock()

	if current != nil && current != stale {
		return current, nil
	}

	return m.refresh(ctx)
}

// Invalidate drops the cached session so the next Session call exchanges
// credentials again.
func (m *Manager) Invalidate() {
	m.mutex.Lock()
	m.session = nil
	m.mutex.Unlock()
}

func (m *Manager) refresh(ctx context.Context) (*sfapi.Session, error) {
	// DoChan rather than Do: the exchange runs detached from any single
	// caller's context, so one canceled waiter does not abort the refresh
	// every other waiter is blocked on.
	ch := m.group.DoChan("session", func() (interface{}, error) {
		m.logger.Debug("exchanging credentials for a new session", nil)

		session, err := m.source.Authenticate(context.WithoutCancel(ctx))
		if err != nil {
			m.logger.Error("credential exchange failed", map[string]interface{}{
				"error": err.Error(),
			})

			return nil, err
		}

		m.mutex.Lock()
		m.session = session
		m.mutex.Unlock()

		m.logger.Debug("session established", map[string]interface{}{
			"instance_url": session.InstanceURL,
		})

		return session, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}

		session, ok := result.Val.(*sfapi.Session)
		if !ok {
			return nil, &sfapi.AuthError{Err: sfapi.ErrNotAuthenticated}
		}

		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
