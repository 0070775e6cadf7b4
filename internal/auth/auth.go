// Package auth acquires and persists the OAuth2 token used to reach the
// spreadsheet. Logging in stores a token; logging out removes it; every
// refresh is written back so a restart resumes the same session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	gsheet "google.golang.org/api/sheets/v4"
)

// ErrReauthorize means the stored credentials are missing, expired beyond
// refresh, or rejected. The user has to log in again.
var ErrReauthorize = errors.New("authorization required")

// Credentials selects where the OAuth client and token come from. JSON takes
// precedence over the matching file path.
type Credentials struct {
	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

// ClientConfig parses the OAuth client JSON downloaded from the Google console.
func (c Credentials) ClientConfig() (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(c.ClientJSON) != "":
		b = []byte(c.ClientJSON)
	case strings.TrimSpace(c.ClientFile) != "":
		var err error
		b, err = os.ReadFile(c.ClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// TokenStore persists a single token. A store built from inline JSON is
// read-only: Save and Clear only affect memory.
type TokenStore struct {
	mu     sync.Mutex
	path   string
	inline *oauth2.Token
}

// NewTokenStore returns a store for c's token source.
func NewTokenStore(c Credentials) (*TokenStore, error) {
	s := &TokenStore{path: strings.TrimSpace(c.TokenFile)}
	if js := strings.TrimSpace(c.TokenJSON); js != "" {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(js), &tok); err != nil {
			return nil, fmt.Errorf("parse token json: %w", err)
		}
		s.inline = &tok
	}
	return s, nil
}

// Load returns the stored token or ErrReauthorize when none exists.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inline != nil {
		tok := *s.inline
		return &tok, nil
	}
	if s.path == "" {
		return nil, ErrReauthorize
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrReauthorize
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

// Save stores tok, replacing any previous token.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inline != nil || s.path == "" {
		cp := *tok
		s.inline = &cp
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear logs out by forgetting the token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inline = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// TokenSource returns a refreshing source that writes every new token back to
// the store.
func TokenSource(ctx context.Context, cfg *oauth2.Config, store *TokenStore) (oauth2.TokenSource, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &persistingSource{
		base:  cfg.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}, nil
}

type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store *TokenStore
	last  string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, Classify(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

// Classify wraps err with ErrReauthorize when it signals rejected or expired
// credentials. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrReauthorize) {
		return err
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", ErrReauthorize, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", ErrReauthorize, err)
	}
	return err
}

// Source resolves the token on first use and after every logout, so the
// server can start before anyone has logged in.
type Source struct {
	ctx   context.Context
	cfg   *oauth2.Config
	store *TokenStore

	mu sync.Mutex
	ts oauth2.TokenSource
}

// NewSource returns a lazy token source over store.
func NewSource(ctx context.Context, cfg *oauth2.Config, store *TokenStore) *Source {
	return &Source{ctx: ctx, cfg: cfg, store: store}
}

func (s *Source) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	if s.ts == nil {
		ts, err := TokenSource(s.ctx, s.cfg, s.store)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.ts = ts
	}
	ts := s.ts
	s.mu.Unlock()

	tok, err := ts.Token()
	if errors.Is(err, ErrReauthorize) {
		s.mu.Lock()
		s.ts = nil
		s.mu.Unlock()
	}
	return tok, err
}

// Logout forgets the cached source and the stored token.
func (s *Source) Logout() error {
	s.mu.Lock()
	s.ts = nil
	s.mu.Unlock()
	return s.store.Clear()
}
