package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/auth"
)

var (
	// ErrNoIdentity means the request carries no usable caller identity
	ErrNoIdentity = errors.New("no identity")

	// ErrProviderUnavailable means the identity provider could not be
	// reached to check the caller's credentials
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Mode selects how identities are resolved
type Mode string

const (
	ModeOIDC   Mode = "oidc"
	ModeHeader Mode = "header"
)

// IdentityResolver turns an incoming request into the caller's identity
type IdentityResolver interface {
	ResolveIdentity(r *http.Request) (*auth.Identity, error)
}

// Config selects and configures a resolver
type Config struct {
	Mode Mode
	OIDC OIDCConfig
}

// NewResolver builds the resolver for the configured mode
func NewResolver(ctx context.Context, cfg Config) (IdentityResolver, error) {
	switch cfg.Mode {
	case ModeOIDC:
		return NewOIDCResolver(ctx, cfg.OIDC)
	case ModeHeader:
		return NewHeaderResolver(), nil
	default:
		return nil, fmt.Errorf("unknown identity mode: %q", cfg.Mode)
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
