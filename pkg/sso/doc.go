// Package sso resolves the caller's identity from an incoming request.
//
// Two resolvers are provided:
//
//   - OIDCResolver verifies an "Authorization: Bearer <id_token>" header
//     against the issuer's published keys. Verified identities are cached per
//     raw token until the token expires. When the token has no email claim and
//     the client sends an access token in X-Access-Token, the issuer's userinfo
//     endpoint fills the gap.
//   - HeaderResolver trusts X-Auth-Request-* headers set by an authenticating
//     proxy.
//
// Both return ErrNoIdentity (possibly wrapped) when the request carries no
// usable identity. OIDCResolver returns ErrProviderUnavailable instead when
// the issuer's keys cannot be fetched. Session handling and login flows belong to the identity
// provider.
//
//	resolver, err := sso.NewResolver(ctx, sso.Config{
//		Mode: sso.ModeOIDC,
//		OIDC: sso.OIDCConfig{IssuerURL: issuer, ClientID: clientID},
//	})
package sso
