package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

const defaultSkew = 30 * time.Second

// CredentialStore loads and persists subject credentials.
type CredentialStore interface {
	Get(subjectID string) (*models.Credential, error)
	Save(c *models.Credential) error
}

// TokenManager hands out valid access tokens, refreshing them when needed.
type TokenManager struct {
	store      CredentialStore
	config     *oauth2.Config
	httpClient *http.Client
	skew       time.Duration
	now        func() time.Time
	logger     *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a [TokenManager].
type Option func(*TokenManager)

// WithSkew treats tokens as expired d before their recorded expiry.
func WithSkew(d time.Duration) Option {
	return func(m *TokenManager) { m.skew = d }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

// WithHTTPClient sets the client used for token grants.
func WithHTTPClient(c *http.Client) Option {
	return func(m *TokenManager) { m.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *TokenManager) { m.logger = l }
}

// NewTokenManager creates a TokenManager for the configured Spotify application.
func NewTokenManager(store CredentialStore, cfg shared.SpotifyConfig, opts ...Option) *TokenManager {
	m := &TokenManager{
		store: store,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		skew:  defaultSkew,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	return m
}

// AccessToken returns a valid access token for subjectID, refreshing the stored credential if needed.
func (m *TokenManager) AccessToken(ctx context.Context, subjectID string) (string, error) {
	cred, err := m.store.Get(subjectID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", fmt.Errorf("%w: no credential for subject %s", shared.ErrAuthentication, subjectID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to load credential: %v", shared.ErrAuthentication, err)
	}
	return m.EnsureValidToken(ctx, cred)
}

// EnsureValidToken returns cred's access token when it is still valid, and otherwise performs a
// refresh-token grant, persists the new token and returns it.
//
// cred is updated in place on refresh.
func (m *TokenManager) EnsureValidToken(ctx context.Context, cred *models.Credential) (string, error) {
	if cred == nil || cred.SubjectID == "" {
		return "", fmt.Errorf("%w: no credential", shared.ErrAuthentication)
	}
	if !cred.ExpiresWithin(m.now(), m.skew) {
		return cred.AccessToken, nil
	}

	lock := m.lockFor(cred.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	// another caller may have refreshed while we waited
	if stored, err := m.store.Get(cred.SubjectID); err == nil && !stored.ExpiresWithin(m.now(), m.skew) {
		*cred = *stored
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: %w", shared.ErrAuthentication, shared.ErrNoRefreshToken)
	}

	logger := shared.WithLogger(m.logger, "subject", cred.SubjectID)
	logger.Debug("refreshing access token", "expires_at", cred.ExpiresAt)

	tok, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		logger.Warn("token refresh failed", "error", err)
		return "", fmt.Errorf("%w: %w: %v", shared.ErrAuthentication, shared.ErrRefreshFailed, err)
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.ExpiresAt = tok.Expiry
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = m.now().Add(time.Hour)
	}

	if err := m.store.Save(cred); err != nil {
		return "", fmt.Errorf("%w: failed to persist refreshed credential: %v", shared.ErrAuthentication, err)
	}

	logger.Info("access token refreshed", "expires_at", cred.ExpiresAt)
	return cred.AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}
	return tok, nil
}

func (m *TokenManager) lockFor(subjectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[subjectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[subjectID] = l
	}
	return l
}
