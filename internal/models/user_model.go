package models

import "time"

// Profile status values. New accounts start as StatusPending until an administrator approves them.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusBanned   = "banned"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Tiers.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// UserProfile is the durable per-user record kept in the "users" collection.
type UserProfile struct {
	ID          string    `json:"id" firestore:"-"` // Firebase Auth UID, used as the document ID
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	Status      string    `json:"status" firestore:"status"`
	Role        string    `json:"role" firestore:"role"`
	Tier        string    `json:"tier,omitempty" firestore:"tier,omitempty"`
	DailyQuota  *int      `json:"dailyQuota,omitempty" firestore:"dailyQuota,omitempty"` // nil means the tier default
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Unbounded reports whether usage for this profile is never metered.
func (p *UserProfile) Unbounded() bool {
	return p.Tier == TierPro || p.IsAdmin()
}

// ProfileUpdate carries the administrator-editable fields of a profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Status     *string `json:"status,omitempty"`
	Role       *string `json:"role,omitempty"`
	Tier       *string `json:"tier,omitempty"`
	DailyQuota *int    `json:"dailyQuota,omitempty"`
	// ClearQuota resets DailyQuota to the tier default.
	ClearQuota bool `json:"clearQuota,omitempty"`
}
