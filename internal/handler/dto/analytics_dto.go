package dto

import "time"

type IngestExtractionRequest struct {
	Filename         string `json:"filename" binding:"required"`
	TokensUsed       int64  `json:"tokens_used" binding:"omitempty,gte=0"`
	CoursesExtracted int    `json:"courses_extracted" binding:"omitempty,gte=0"`
	TotalPages       int    `json:"total_pages" binding:"omitempty,gte=0"`
	APIUsed          string `json:"api_used,omitempty"`
}

type TokenSummary struct {
	TotalExtractions     int   `json:"total_extractions"`
	TotalTokens          int64 `json:"total_tokens"`
	TotalCourses         int64 `json:"total_courses"`
	TotalPages           int64 `json:"total_pages"`
	FreeTierLimit        int64 `json:"free_tier_limit"`
	TokensRemaining      int64 `json:"tokens_remaining"`
	UsagePercentage      int   `json:"usage_percentage"`
	ExtractionsRemaining int64 `json:"extractions_remaining"`
}

type TokenEfficiency struct {
	TokensPerCourse      float64 `json:"tokens_per_course"`
	TokensPerPage        float64 `json:"tokens_per_page"`
	CoursesPerExtraction float64 `json:"courses_per_extraction"`
}

type AnalyticsKeyUsage struct {
	APIUsed     string `json:"api_used"`
	Extractions int    `json:"extractions"`
	Tokens      int64  `json:"tokens"`
}

type ExtractionRecord struct {
	Filename         string    `json:"filename"`
	TokensUsed       int64     `json:"tokens_used"`
	CoursesExtracted int       `json:"courses_extracted"`
	TotalPages       int       `json:"total_pages"`
	APIUsed          string    `json:"api_used"`
	CreatedAt        time.Time `json:"created_at"`
}

type TokenAnalyticsResponse struct {
	Summary      TokenSummary        `json:"summary"`
	Efficiency   TokenEfficiency     `json:"efficiency"`
	KeyBreakdown []AnalyticsKeyUsage `json:"key_breakdown"`
	TopByTokens  []ExtractionRecord  `json:"top_by_tokens"`
	TopByCourses []ExtractionRecord  `json:"top_by_courses"`
	Recent       []ExtractionRecord  `json:"recent"`
}
