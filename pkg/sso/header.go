package sso

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Headers set by an authenticating reverse proxy such as oauth2-proxy
const (
	HeaderUser      = "X-Auth-Request-User"
	HeaderEmail     = "X-Auth-Request-Email"
	HeaderFirstName = "X-Auth-Request-First-Name"
	HeaderLastName  = "X-Auth-Request-Last-Name"
	HeaderAvatar    = "X-Auth-Request-Avatar"
)

// HeaderResolver trusts identity headers injected by a proxy in front of the
// service. It must only be used when clients cannot reach the service
// directly.
type HeaderResolver struct{}

// NewHeaderResolver creates a trusted-header resolver
func NewHeaderResolver() *HeaderResolver {
	return &HeaderResolver{}
}

// ResolveIdentity reads the proxy headers; user and email are both required
func (h *HeaderResolver) ResolveIdentity(r *http.Request) (*auth.Identity, error) {
	externalID := strings.TrimSpace(r.Header.Get(HeaderUser))
	email := strings.TrimSpace(r.Header.Get(HeaderEmail))
	if externalID == "" || email == "" {
		return nil, ErrNoIdentity
	}

	// the proxy only forwards emails it has already verified
	return &auth.Identity{
		ExternalID:    externalID,
		Email:         email,
		EmailVerified: true,
		FirstName:     strings.TrimSpace(r.Header.Get(HeaderFirstName)),
		LastName:      strings.TrimSpace(r.Header.Get(HeaderLastName)),
		AvatarURL:     strings.TrimSpace(r.Header.Get(HeaderAvatar)),
	}, nil
}
