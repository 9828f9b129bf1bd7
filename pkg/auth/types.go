package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/contextkeys"
)

// Identity is the caller as asserted by the identity provider
type Identity struct {
	ExternalID    string `json:"externalId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
}

// UserRole is the role reference embedded in a user
type UserRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// User is the local account bound to an external identity
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	AvatarURL  *string   `json:"avatarUrl,omitempty"`
	RoleID     string    `json:"roleId"`
	Role       UserRole  `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthContext is the resolved caller of a request
type AuthContext struct {
	Identity *Identity
	User     *User
}

// UserID returns the local user id, or "" before provisioning
func (a *AuthContext) UserID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID
}

// RoleName returns the caller's current role name, or ""
func (a *AuthContext) RoleName() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.Role.Name
}

// WithAuthContext stores the caller on the context
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	ctx = contextkeys.WithAuth(ctx, authCtx)
	if id := authCtx.UserID(); id != "" {
		ctx = contextkeys.WithUserID(ctx, id)
	}
	return ctx
}

// FromContext returns the caller stored on the context, or nil
func FromContext(ctx context.Context) *AuthContext {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *AuthContext {
	return FromContext(r.Context())
}
