package dto

import "github.com/google/uuid"

type RecordUsageRequest struct {
	APIKeyID      uuid.UUID `json:"api_key_id" binding:"required"`
	RequestsCount int       `json:"requests_count,omitempty" binding:"omitempty,gt=0"`
	TokensUsed    int64     `json:"tokens_used,omitempty" binding:"omitempty,gte=0"`
	CostCents     int64     `json:"cost_cents,omitempty" binding:"omitempty,gte=0"`
	SchoolName    string    `json:"school_name,omitempty"`
	Success       *bool     `json:"success,omitempty"`
}

type ReportTotals struct {
	TotalRequests  int64 `json:"total_requests"`
	TotalTokens    int64 `json:"total_tokens"`
	TotalCostCents int64 `json:"total_cost_cents"`
}

type KeyDayUsage struct {
	Nickname string `json:"nickname"`
	Requests int64  `json:"requests"`
}

type DailyUsage struct {
	Date      string        `json:"date"`
	Requests  int64         `json:"requests"`
	Tokens    int64         `json:"tokens"`
	CostCents int64         `json:"cost_cents"`
	Keys      []KeyDayUsage `json:"keys"`
}

type SchoolUsage struct {
	School    string `json:"school"`
	Requests  int64  `json:"requests"`
	Tokens    int64  `json:"tokens"`
	CostCents int64  `json:"cost_cents"`
}

type KeyUsage struct {
	APIKeyID  uuid.UUID `json:"api_key_id"`
	Nickname  string    `json:"nickname"`
	Requests  int64     `json:"requests"`
	Tokens    int64     `json:"tokens"`
	CostCents int64     `json:"cost_cents"`
}

type UsageReportResponse struct {
	Period          string        `json:"period"`
	Totals          ReportTotals  `json:"totals"`
	DailyBreakdown  []DailyUsage  `json:"daily_breakdown"`
	SchoolBreakdown []SchoolUsage `json:"school_breakdown"`
	KeyBreakdown    []KeyUsage    `json:"key_breakdown"`
}
