package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanBasic    Plan = "basic"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Period is a billing period for a paid plan.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// ParsePlan returns the plan for s and whether it names a known tier.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanBasic, PlanPro, PlanBusiness:
		return Plan(s), true
	}
	return PlanFree, false
}

// ParsePeriod defaults to monthly for anything other than "yearly".
func ParsePeriod(s string) Period {
	if Period(s) == PeriodYearly {
		return PeriodYearly
	}
	return PeriodMonthly
}

// SentinelOrganizationID is returned by the resolver when persistence is unavailable.
var SentinelOrganizationID = uuid.Nil

// Organization is the billing and quota tenant: one LINE user or one LINE group.
// Exactly one of LineUserID / LineGroupID is set.
type Organization struct {
	ID               uuid.UUID  `json:"id"`
	LineUserID       *string    `json:"line_user_id,omitempty"`
	LineGroupID      *string    `json:"line_group_id,omitempty"`
	Plan             Plan       `json:"plan"`
	PlanExpiresAt    *time.Time `json:"plan_expires_at,omitempty"`
	AIChatsToday     int        `json:"ai_chats_today"`
	AIChatsResetAt   time.Time  `json:"ai_chats_reset_at"`
	TasksThisMonth   int        `json:"tasks_this_month"`
	TasksResetAt     time.Time  `json:"tasks_reset_at"`
	StorageUsedBytes int64      `json:"storage_used_bytes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsGroup reports whether the organization belongs to a group conversation.
func (o *Organization) IsGroup() bool { return o.LineGroupID != nil }

// ExternalID returns the chat-platform identity used as push target.
func (o *Organization) ExternalID() string {
	if o.LineGroupID != nil {
		return *o.LineGroupID
	}
	if o.LineUserID != nil {
		return *o.LineUserID
	}
	return ""
}

// IsSentinel reports whether o is the degraded placeholder organization.
func (o *Organization) IsSentinel() bool { return o.ID == SentinelOrganizationID }

// Expired reports whether a paid plan's expiration lies before now.
func (o *Organization) Expired(now time.Time) bool {
	return o.PlanExpiresAt != nil && o.PlanExpiresAt.Before(now)
}
