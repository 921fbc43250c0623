package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterKeyRequest struct {
	Secret     string `json:"secret" binding:"required"`
	Nickname   string `json:"nickname" binding:"required"`
	Provider   string `json:"provider,omitempty"`
	DailyLimit int    `json:"daily_limit,omitempty" binding:"omitempty,gt=0"`
}

type RegisterKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdateKeyRequest struct {
	Nickname *string `json:"nickname,omitempty" binding:"omitempty,min=1"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// KeyResponse is the raw list view, ordered by creation time descending.
type KeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Nickname   string     `json:"nickname"`
	Provider   string     `json:"provider"`
	IsActive   bool       `json:"is_active"`
	IsDeleted  bool       `json:"is_deleted,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	DailyLimit int        `json:"daily_limit"`
}

// KeyStatsResponse is the stats view, ordered by nickname ascending.
type KeyStatsResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Nickname             string     `json:"nickname"`
	IsActive             bool       `json:"is_active"`
	UsedToday            int        `json:"used_today"`
	DailyLimit           int        `json:"daily_limit"`
	Remaining            int        `json:"remaining"`
	PercentageUsed       int        `json:"percentage_used"`
	LastUsed             *time.Time `json:"last_used,omitempty"`
	ExtractionCountToday int64      `json:"extraction_count_today"`
}

// CandidateResponse is one entry of the Selector's ranked list.
type CandidateResponse struct {
	ID             uuid.UUID `json:"id"`
	Nickname       string    `json:"nickname"`
	Remaining      int       `json:"remaining"`
	UsedToday      int       `json:"used_today"`
	DailyLimit     int       `json:"daily_limit"`
	PercentageUsed int       `json:"percentage_used"`
}

type PeriodUsage struct {
	Requests  int64 `json:"requests"`
	Tokens    int64 `json:"tokens"`
	CostCents int64 `json:"cost_cents"`
}

type KeyUsageDetailResponse struct {
	ID         uuid.UUID   `json:"id"`
	Nickname   string      `json:"nickname"`
	UsedToday  int         `json:"used_today"`
	Remaining  int         `json:"remaining"`
	DailyLimit int         `json:"daily_limit"`
	LastUsed   *time.Time  `json:"last_used,omitempty"`
	Period     PeriodUsage `json:"period"`
	PeriodDays int         `json:"period_days"`
	AllTime    PeriodUsage `json:"all_time"`
}
