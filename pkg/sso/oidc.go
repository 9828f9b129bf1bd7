package sso

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/warden/pkg/auth"
)

// AccessTokenHeader carries an optional access token used for userinfo lookups
const AccessTokenHeader = "X-Access-Token"

const defaultCacheSize = 1024

// OIDCConfig configures bearer ID token verification
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
	CacheSize int
}

// Validate checks the OIDC configuration
func (c OIDCConfig) Validate() error {
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}

// userInfoFunc matches (*oidc.Provider).UserInfo
type userInfoFunc func(ctx context.Context, ts oauth2.TokenSource) (*oidc.UserInfo, error)

type cachedIdentity struct {
	identity *auth.Identity
	expiry   time.Time
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// OIDCResolver verifies "Authorization: Bearer <id_token>" against the
// issuer's keys and caches verified identities until the token expires.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
	userInfo userInfoFunc
	cache    *lru.Cache[string, cachedIdentity]
	now      func() time.Time
}

// NewOIDCResolver discovers the issuer and builds a resolver for it
func NewOIDCResolver(ctx context.Context, cfg OIDCConfig) (*OIDCResolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newOIDCResolver(verifier, provider.UserInfo, cfg.CacheSize, time.Now)
}

func newOIDCResolver(verifier *oidc.IDTokenVerifier, userInfo userInfoFunc, cacheSize int, now func() time.Time) (*OIDCResolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, cachedIdentity](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity cache: %w", err)
	}
	return &OIDCResolver{
		verifier: verifier,
		userInfo: userInfo,
		cache:    cache,
		now:      now,
	}, nil
}

// ResolveIdentity verifies the bearer ID token of the request
func (o *OIDCResolver) ResolveIdentity(r *http.Request) (*auth.Identity, error) {
	rawIDToken := bearerToken(r)
	if rawIDToken == "" {
		return nil, ErrNoIdentity
	}

	if cached, ok := o.cache.Get(rawIDToken); ok {
		if o.now().Before(cached.expiry) {
			return cached.identity, nil
		}
		o.cache.Remove(rawIDToken)
	}

	ctx := r.Context()
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		if keyFetchFailed(err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: failed to verify ID token: %v", ErrNoIdentity, err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrNoIdentity, err)
	}

	identity := &auth.Identity{
		ExternalID:    idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		AvatarURL:     claims.Picture,
	}
	if identity.FirstName == "" && identity.LastName == "" && claims.Name != "" {
		identity.FirstName, identity.LastName = splitName(claims.Name)
	}

	if identity.Email == "" {
		if accessToken := strings.TrimSpace(r.Header.Get(AccessTokenHeader)); accessToken != "" && o.userInfo != nil {
			o.mergeUserInfo(ctx, identity, accessToken)
		}
	}

	if identity.ExternalID == "" {
		return nil, fmt.Errorf("%w: missing subject in ID token", ErrNoIdentity)
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("%w: missing email in ID token", ErrNoIdentity)
	}

	o.cache.Add(rawIDToken, cachedIdentity{identity: identity, expiry: idToken.Expiry})
	return identity, nil
}

// mergeUserInfo fills gaps in the identity from the userinfo endpoint. Lookup
// failures leave the identity as it was.
func (o *OIDCResolver) mergeUserInfo(ctx context.Context, identity *auth.Identity, accessToken string) {
	info, err := o.userInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return
	}
	if info.Subject != "" && info.Subject != identity.ExternalID {
		return
	}
	identity.Email = info.Email
	identity.EmailVerified = info.EmailVerified

	var claims idClaims
	if err := info.Claims(&claims); err != nil {
		return
	}
	if identity.FirstName == "" {
		identity.FirstName = claims.GivenName
	}
	if identity.LastName == "" {
		identity.LastName = claims.FamilyName
	}
	if identity.AvatarURL == "" {
		identity.AvatarURL = claims.Picture
	}
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// keyFetchFailed reports whether Verify failed because the issuer's signing
// keys could not be fetched. go-oidc flattens key set errors into the message
// of the Verify error, so the remote key set's prefix is all there is to go on.
func keyFetchFailed(err error) bool {
	return strings.Contains(err.Error(), "fetching keys")
}
