package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/handler/dto"
	"github.com/skedlab/extractor-api/internal/ierr"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type dayAccumulator struct {
	requests  int64
	tokens    int64
	costCents int64
	byKey     map[string]int64
}

type sumAccumulator struct {
	requests  int64
	tokens    int64
	costCents int64
}

type keyAccumulator struct {
	nickname string
	sumAccumulator
}

// ReportBuilder folds usage log entries into the multi-dimensional report.
// Adds are commutative, so the result is independent of entry order and of
// how the input set is chunked across Add calls; only Build applies the
// final sort orders.
type ReportBuilder struct {
	totals  dto.ReportTotals
	days    map[string]*dayAccumulator
	schools map[string]*sumAccumulator
	keys    map[uuid.UUID]*keyAccumulator
}

func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{
		days:    make(map[string]*dayAccumulator),
		schools: make(map[string]*sumAccumulator),
		keys:    make(map[uuid.UUID]*keyAccumulator),
	}
}

func (b *ReportBuilder) Add(e usage.LogEntry) {
	requests := int64(e.RequestsCount)

	b.totals.TotalRequests += requests
	b.totals.TotalTokens += e.TokensUsed
	b.totals.TotalCostCents += e.EstimatedCostCents

	day := e.Date.UTC().Format(dateLayout)
	d, ok := b.days[day]
	if !ok {
		d = &dayAccumulator{byKey: make(map[string]int64)}
		b.days[day] = d
	}
	d.requests += requests
	d.tokens += e.TokensUsed
	d.costCents += e.EstimatedCostCents
	d.byKey[e.APIKeyNickname] += requests

	school := e.SchoolName
	if school == "" {
		school = usage.SchoolUnknown
	}
	s, ok := b.schools[school]
	if !ok {
		s = &sumAccumulator{}
		b.schools[school] = s
	}
	s.requests += requests
	s.tokens += e.TokensUsed
	s.costCents += e.EstimatedCostCents

	k, ok := b.keys[e.APIKeyID]
	if !ok {
		k = &keyAccumulator{nickname: e.APIKeyNickname}
		b.keys[e.APIKeyID] = k
	}
	k.requests += requests
	k.tokens += e.TokensUsed
	k.costCents += e.EstimatedCostCents
}

func (b *ReportBuilder) Build() (dto.ReportTotals, []dto.DailyUsage, []dto.SchoolUsage, []dto.KeyUsage) {
	daily := make([]dto.DailyUsage, 0, len(b.days))
	for day, acc := range b.days {
		keys := make([]dto.KeyDayUsage, 0, len(acc.byKey))
		for nickname, requests := range acc.byKey {
			keys = append(keys, dto.KeyDayUsage{Nickname: nickname, Requests: requests})
		}
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Nickname < keys[j].Nickname
		})
		daily = append(daily, dto.DailyUsage{
			Date:      day,
			Requests:  acc.requests,
			Tokens:    acc.tokens,
			CostCents: acc.costCents,
			Keys:      keys,
		})
	}
	// ISO dates sort chronologically as strings; oldest first.
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date < daily[j].Date
	})

	schools := make([]dto.SchoolUsage, 0, len(b.schools))
	for school, acc := range b.schools {
		schools = append(schools, dto.SchoolUsage{
			School:    school,
			Requests:  acc.requests,
			Tokens:    acc.tokens,
			CostCents: acc.costCents,
		})
	}
	sort.Slice(schools, func(i, j int) bool {
		if schools[i].Requests != schools[j].Requests {
			return schools[i].Requests > schools[j].Requests
		}
		return schools[i].School < schools[j].School
	})

	keys := make([]dto.KeyUsage, 0, len(b.keys))
	for id, acc := range b.keys {
		keys = append(keys, dto.KeyUsage{
			APIKeyID:  id,
			Nickname:  acc.nickname,
			Requests:  acc.requests,
			Tokens:    acc.tokens,
			CostCents: acc.costCents,
		})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Requests != keys[j].Requests {
			return keys[i].Requests > keys[j].Requests
		}
		return keys[i].Nickname < keys[j].Nickname
	})

	return b.totals, daily, schools, keys
}

// BuildTokenReport computes the token-efficiency report from an owner's
// extraction records. Every division is guarded: a zero denominator yields a
// zero ratio rather than an error.
func BuildTokenReport(records []usage.TokenAnalyticsRecord, freeTierLimit int64) (dto.TokenSummary, dto.TokenEfficiency, []dto.AnalyticsKeyUsage, []dto.ExtractionRecord, []dto.ExtractionRecord) {
	var summary dto.TokenSummary
	summary.FreeTierLimit = freeTierLimit
	summary.TotalExtractions = len(records)

	keyAcc := make(map[string]*dto.AnalyticsKeyUsage)
	for _, rec := range records {
		summary.TotalTokens += rec.TokensUsed
		summary.TotalCourses += int64(rec.CoursesExtracted)
		summary.TotalPages += int64(rec.TotalPages)

		api := rec.APIUsed
		if api == "" {
			api = usage.SchoolUnknown
		}
		acc, ok := keyAcc[api]
		if !ok {
			acc = &dto.AnalyticsKeyUsage{APIUsed: api}
			keyAcc[api] = acc
		}
		acc.Extractions++
		acc.Tokens += rec.TokensUsed
	}

	var efficiency dto.TokenEfficiency
	if summary.TotalCourses > 0 {
		efficiency.TokensPerCourse = float64(summary.TotalTokens) / float64(summary.TotalCourses)
	}
	if summary.TotalPages > 0 {
		efficiency.TokensPerPage = float64(summary.TotalTokens) / float64(summary.TotalPages)
	}
	if summary.TotalExtractions > 0 {
		efficiency.CoursesPerExtraction = float64(summary.TotalCourses) / float64(summary.TotalExtractions)
	}

	summary.TokensRemaining = freeTierLimit - summary.TotalTokens
	if summary.TokensRemaining < 0 {
		summary.TokensRemaining = 0
	}
	if freeTierLimit > 0 {
		pct := int(math.Round(float64(summary.TotalTokens) / float64(freeTierLimit) * 100))
		if pct > 100 {
			pct = 100
		}
		summary.UsagePercentage = pct
	}

	avgTokensPerCourse := efficiency.TokensPerCourse
	if avgTokensPerCourse < 1 {
		avgTokensPerCourse = 1
	}
	summary.ExtractionsRemaining = int64(math.Floor(float64(summary.TokensRemaining) / avgTokensPerCourse))

	keyBreakdown := make([]dto.AnalyticsKeyUsage, 0, len(keyAcc))
	for _, acc := range keyAcc {
		keyBreakdown = append(keyBreakdown, *acc)
	}
	sort.Slice(keyBreakdown, func(i, j int) bool {
		if keyBreakdown[i].Tokens != keyBreakdown[j].Tokens {
			return keyBreakdown[i].Tokens > keyBreakdown[j].Tokens
		}
		return keyBreakdown[i].APIUsed < keyBreakdown[j].APIUsed
	})

	byTokens := toExtractionRecords(records)
	sort.Slice(byTokens, func(i, j int) bool {
		return byTokens[i].TokensUsed > byTokens[j].TokensUsed
	})
	byCourses := toExtractionRecords(records)
	sort.Slice(byCourses, func(i, j int) bool {
		return byCourses[i].CoursesExtracted > byCourses[j].CoursesExtracted
	})

	return summary, efficiency, keyBreakdown, topN(byTokens, 10), topN(byCourses, 10)
}

func toExtractionRecords(records []usage.TokenAnalyticsRecord) []dto.ExtractionRecord {
	out := make([]dto.ExtractionRecord, len(records))
	for i, rec := range records {
		out[i] = dto.ExtractionRecord{
			Filename:         rec.Filename,
			TokensUsed:       rec.TokensUsed,
			CoursesExtracted: rec.CoursesExtracted,
			TotalPages:       rec.TotalPages,
			APIUsed:          rec.APIUsed,
			CreatedAt:        rec.CreatedAt,
		}
	}
	return out
}

func topN(records []dto.ExtractionRecord, n int) []dto.ExtractionRecord {
	if len(records) > n {
		return records[:n]
	}
	return records
}

// AnalyticsService is the read-only reporting path over usage logs and
// extraction token records.
type AnalyticsService struct {
	logs      usage.LogRepository
	analytics usage.AnalyticsRepository
	freeTier  int64
	logger    *zap.Logger
}

func NewAnalyticsService(logs usage.LogRepository, analytics usage.AnalyticsRepository, freeTierLimit int64, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		logs:      logs,
		analytics: analytics,
		freeTier:  freeTierLimit,
		logger:    logger.Named("AnalyticsService"),
	}
}

// UsageReport aggregates the usage log over the last `days` UTC days,
// optionally filtered to one key.
func (s *AnalyticsService) UsageReport(ctx context.Context, days int, keyID *uuid.UUID) (*dto.UsageReportResponse, error) {
	if days <= 0 {
		days = 30
	}

	now := time.Now().UTC()
	start := apikey.StartOfDay(now).AddDate(0, 0, -(days - 1))

	entries, err := s.logs.ListWindow(ctx, start, now, keyID)
	if err != nil {
		return nil, err
	}

	builder := NewReportBuilder()
	for _, e := range entries {
		builder.Add(e)
	}
	totals, daily, schools, keys := builder.Build()

	return &dto.UsageReportResponse{
		Period:          fmt.Sprintf("Last %d days", days),
		Totals:          totals,
		DailyBreakdown:  daily,
		SchoolBreakdown: schools,
		KeyBreakdown:    keys,
	}, nil
}

// TokenReport builds the owner's token-efficiency view.
func (s *AnalyticsService) TokenReport(ctx context.Context, ownerID uuid.UUID) (*dto.TokenAnalyticsResponse, error) {
	records, err := s.analytics.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	recent, err := s.analytics.RecentByOwner(ctx, ownerID, 20)
	if err != nil {
		return nil, err
	}

	summary, efficiency, keyBreakdown, topByTokens, topByCourses := BuildTokenReport(records, s.freeTier)

	return &dto.TokenAnalyticsResponse{
		Summary:      summary,
		Efficiency:   efficiency,
		KeyBreakdown: keyBreakdown,
		TopByTokens:  topByTokens,
		TopByCourses: topByCourses,
		Recent:       toExtractionRecords(recent),
	}, nil
}

// IngestExtraction stores one completed extraction's token record.
func (s *AnalyticsService) IngestExtraction(ctx context.Context, ownerID uuid.UUID, req *dto.IngestExtractionRequest) error {
	if req.Filename == "" {
		return fmt.Errorf("%w: filename is required", ierr.ErrValidation)
	}

	rec := &usage.TokenAnalyticsRecord{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Filename:         req.Filename,
		TokensUsed:       req.TokensUsed,
		CoursesExtracted: req.CoursesExtracted,
		TotalPages:       req.TotalPages,
		APIUsed:          req.APIUsed,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.analytics.Insert(ctx, rec); err != nil {
		return err
	}

	s.logger.Debug("Extraction token record stored",
		zap.String("owner_id", ownerID.String()),
		zap.String("filename", req.Filename),
	)
	return nil
}
