package models

import "time"

// Role is a user's permission level
type Role string

const (
	RoleChild  Role = "child"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleChild || r == RoleMentor || r == RoleAdmin
}

// SubscriptionTier decides the monthly story quota
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// Valid reports whether t is a known tier
func (t SubscriptionTier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// SubscriptionStatus mirrors the billing state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// Valid reports whether s is a known status
func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionActive || s == SubscriptionCanceled || s == SubscriptionPastDue
}

// User represents an account: a child writer, a mentor or an admin
type User struct {
	ID                      int64              `json:"id"`
	Email                   string             `json:"email"`
	PasswordHash            string             `json:"-"`
	Name                    string             `json:"name"`
	PenName                 string             `json:"penName"`
	Role                    Role               `json:"role"`
	SubscriptionTier        SubscriptionTier   `json:"subscriptionTier"`
	SubscriptionStatus      SubscriptionStatus `json:"subscriptionStatus"`
	IsActive                bool               `json:"isActive"`
	TotalStories            int                `json:"totalStories"`
	TotalWords              int                `json:"totalWords"`
	StoriesThisMonth        int                `json:"storiesThisMonth"`
	EmailCompetitionUpdates bool               `json:"emailCompetitionUpdates"`
	EmailQuotaReset         bool               `json:"emailQuotaReset"`
	CreatedAt               time.Time          `json:"createdAt"`
	UpdatedAt               time.Time          `json:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanReview reports whether the user may read and comment on other users' stories
func (u *User) CanReview() bool {
	return u.Role == RoleMentor || u.Role == RoleAdmin
}

// DisplayName is the pen name for children and the real name otherwise
func (u *User) DisplayName() string {
	if u.PenName != "" {
		return u.PenName
	}
	return u.Name
}

// UserFilter selects a page of users for the admin list
type UserFilter struct {
	Role   Role
	Search string
	Page   int
	Limit  int
}

// UserUpdate holds the admin-editable fields; nil means unchanged
type UserUpdate struct {
	Name               *string             `json:"name,omitempty"`
	Role               *Role               `json:"role,omitempty"`
	SubscriptionTier   *SubscriptionTier   `json:"subscriptionTier,omitempty"`
	SubscriptionStatus *SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	IsActive           *bool               `json:"isActive,omitempty"`
}

// PasswordResetToken represents a token for password reset
type PasswordResetToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsExpired checks if the reset token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
