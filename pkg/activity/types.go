package activity

import (
	"time"

	"github.com/platinummonkey/warden/pkg/rbac"
)

// Action labels. Labels are free text shown to people; the action-type
// filter matches on them by substring.
const (
	ActionFirstSignIn  = "signed in for the first time"
	ActionFileUpload   = "uploaded a file"
	ActionFileDownload = "downloaded a file"
	ActionFileDelete   = "deleted a file"
	ActionRoleCreate   = rbac.ActionRoleCreated
	ActionRoleUpdate   = rbac.ActionRoleUpdated
	ActionRoleDelete   = rbac.ActionRoleDeleted
	ActionUserCreate   = "created a user"
	ActionUserUpdate   = "updated a user"
	ActionUserDelete   = "deleted a user"
)

// Entry is one immutable activity log row
type Entry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	IPAddress string                 `json:"ipAddress"`
	UserAgent string                 `json:"userAgent"`
	CreatedAt time.Time              `json:"createdAt"`
	User      *Actor                 `json:"user,omitempty"`
}

// Actor is the user who performed an action, as shown next to the entry
type Actor struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// ActionType is a named category of actions for filtering
type ActionType string

const (
	ActionTypeAll              ActionType = "all"
	ActionTypeUpload           ActionType = "upload"
	ActionTypeDownload         ActionType = "download"
	ActionTypeLogin            ActionType = "login"
	ActionTypeRoleCreate       ActionType = "role_create"
	ActionTypeRoleUpdate       ActionType = "role_update"
	ActionTypeRoleDelete       ActionType = "role_delete"
	ActionTypePermissionUpdate ActionType = "permission_update"
	ActionTypeFileDelete       ActionType = "file_delete"
	ActionTypeUserCreate       ActionType = "user_create"
	ActionTypeUserEdit         ActionType = "user_edit"
	ActionTypeUserDelete       ActionType = "user_delete"
)

// actionTypeLabels maps each action type to the label fragment it matches
var actionTypeLabels = map[ActionType]string{
	ActionTypeUpload:           "uploaded",
	ActionTypeDownload:         "downloaded",
	ActionTypeLogin:            "signed in",
	ActionTypeRoleCreate:       ActionRoleCreate,
	ActionTypeRoleUpdate:       ActionRoleUpdate,
	ActionTypeRoleDelete:       ActionRoleDelete,
	ActionTypePermissionUpdate: ActionRoleUpdate,
	ActionTypeFileDelete:       ActionFileDelete,
	ActionTypeUserCreate:       ActionUserCreate,
	ActionTypeUserEdit:         ActionUserUpdate,
	ActionTypeUserDelete:       ActionUserDelete,
}

// LabelFragment returns the label substring an action type matches. The
// second result is false for unknown types; "all" matches everything and
// returns an empty fragment.
func (t ActionType) LabelFragment() (string, bool) {
	if t == ActionTypeAll || t == "" {
		return "", true
	}
	fragment, ok := actionTypeLabels[t]
	return fragment, ok
}

// TimeRange is a named window relative to now
type TimeRange string

const (
	TimeRangeAll       TimeRange = "all"
	TimeRangeToday     TimeRange = "today"
	TimeRangeYesterday TimeRange = "yesterday"
	TimeRangeWeek      TimeRange = "week"
	TimeRangeMonth     TimeRange = "month"
	TimeRangeCustom    TimeRange = "custom"
)

func (r TimeRange) valid() bool {
	switch r {
	case "", TimeRangeAll, TimeRangeToday, TimeRangeYesterday, TimeRangeWeek, TimeRangeMonth, TimeRangeCustom:
		return true
	}
	return false
}
