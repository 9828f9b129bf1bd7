// Package auth defines who is calling: the Identity asserted by the identity
// provider, the local User it is bound to, and the AuthContext that carries
// both through a request.
//
// The guard in pkg/middleware resolves the identity, provisions the user and
// stores the result:
//
//	ctx = auth.WithAuthContext(ctx, &auth.AuthContext{Identity: id, User: user})
//
// Handlers read it back:
//
//	caller := auth.GetAuthContext(r)
//	if caller == nil { ... } // route is not behind the guard
//
// Authorization decisions are not made here; see pkg/rbac.
package auth
