package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/platinummonkey/warden/pkg/activity"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// Provisioning outcomes recorded in metrics
const (
	outcomeExisting = "existing"
	outcomeCreated  = "created"
	outcomeClaimed  = "claimed"
	outcomeRaced    = "raced"
	outcomeFailed   = "failed"
)

// Provisioner binds identities to local users, creating them on first sight
type Provisioner struct {
	users    *Store
	roles    *rbac.Store
	recorder activity.Recorder
	metrics  *observability.Metrics
}

// NewProvisioner creates a provisioner
func NewProvisioner(users *Store, roles *rbac.Store, recorder activity.Recorder, metrics *observability.Metrics) *Provisioner {
	if recorder == nil {
		recorder = activity.NopRecorder{}
	}
	return &Provisioner{
		users:    users,
		roles:    roles,
		recorder: recorder,
		metrics:  metrics,
	}
}

// GetOrCreate returns the user bound to identity, creating it with the
// default role when missing. A pending user created by an admin is claimed
// only by an identity whose email the provider verified. The boolean reports
// whether this call bound the identity for the first time. Concurrent calls
// for one identity converge on a single row through the unique external id.
func (p *Provisioner) GetOrCreate(ctx context.Context, identity *auth.Identity) (*auth.User, bool, error) {
	user, err := p.users.GetByExternalID(ctx, identity.ExternalID)
	if err == nil {
		p.metrics.ObserveProvisioning(outcomeExisting)
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		p.metrics.ObserveProvisioning(outcomeFailed)
		return nil, false, err
	}

	if identity.EmailVerified {
		user, err = p.users.ClaimPending(ctx, identity)
		switch {
		case err == nil:
			p.metrics.ObserveProvisioning(outcomeClaimed)
			return user, true, nil
		case errors.Is(err, ErrUserExists):
			return p.refetch(ctx, identity)
		case !errors.Is(err, ErrUserNotFound):
			p.metrics.ObserveProvisioning(outcomeFailed)
			return nil, false, err
		}
	}

	role, err := p.roles.GetRoleByName(ctx, string(rbac.DefaultRoleName))
	if errors.Is(err, rbac.ErrRoleNotFound) {
		p.metrics.ObserveProvisioning(outcomeFailed)
		return nil, false, httputil.Configuration("Default role not found", err)
	}
	if err != nil {
		p.metrics.ObserveProvisioning(outcomeFailed)
		return nil, false, err
	}

	user = &auth.User{
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		RoleID:     role.ID,
		Role: auth.UserRole{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
		},
	}
	if identity.AvatarURL != "" {
		avatar := identity.AvatarURL
		user.AvatarURL = &avatar
	}

	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return p.refetch(ctx, identity)
		}
		p.metrics.ObserveProvisioning(outcomeFailed)
		return nil, false, err
	}

	p.metrics.ObserveProvisioning(outcomeCreated)
	return user, true, nil
}

// refetch loads the row a concurrent request created
func (p *Provisioner) refetch(ctx context.Context, identity *auth.Identity) (*auth.User, bool, error) {
	user, err := p.users.GetByExternalID(ctx, identity.ExternalID)
	if err != nil {
		p.metrics.ObserveProvisioning(outcomeFailed)
		return nil, false, fmt.Errorf("failed to fetch concurrently provisioned user: %w", err)
	}
	p.metrics.ObserveProvisioning(outcomeRaced)
	return user, false, nil
}

// Provision resolves the local user for a request and records the first
// sign-in.
func (p *Provisioner) Provision(r *http.Request, identity *auth.Identity) (*auth.User, error) {
	user, created, err := p.GetOrCreate(r.Context(), identity)
	if err != nil {
		return nil, err
	}

	if created {
		p.recorder.RecordRequest(r, user.ID, activity.ActionFirstSignIn, map[string]interface{}{
			"email": user.Email,
		})
	}
	return user, nil
}
