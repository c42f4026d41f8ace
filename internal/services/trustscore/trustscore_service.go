package trustscore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treinacnh/backend/internal/models"
)

const (
	baseScore = 50

	emailVerifiedBonus  = 10
	phoneVerifiedBonus  = 10
	approvedCaseBonus   = 15 // capped: one approved case or ten score the same
	positiveReviewBonus = 5
	positiveReviewCap   = 15
	accountAgeBonus     = 5
	accountAgeCutoff    = 30 * 24 * time.Hour

	rejectedCasePenalty     = 10
	negativeReviewPenalty   = 10
	unreviewedReportPenalty = 10

	cacheTTL = time.Hour
)

// Inputs are the reputation signals the score is derived from. Compute is a
// pure function of this struct; Service gathers it from storage.
type Inputs struct {
	EmailVerified   bool
	PhoneVerified   bool
	ApprovedCases   int
	RejectedCases   int
	PositiveReviews int // rating >= 4
	NegativeReviews int // rating <= 2
	// unreviewed suspicious-activity records of high or critical severity
	UnreviewedHighSeverity int
	AccountAge             time.Duration
}

// Compute aggregates the signals into a 0..100 trust score. Pure and
// idempotent: the same inputs always produce the same score.
func Compute(in Inputs) int {
	score := baseScore

	if in.EmailVerified {
		score += emailVerifiedBonus
	}
	if in.PhoneVerified {
		score += phoneVerifiedBonus
	}
	if in.ApprovedCases > 0 {
		score += approvedCaseBonus
	}

	reviewBonus := in.PositiveReviews * positiveReviewBonus
	if reviewBonus > positiveReviewCap {
		reviewBonus = positiveReviewCap
	}
	score += reviewBonus

	if in.AccountAge > accountAgeCutoff {
		score += accountAgeBonus
	}

	score -= in.RejectedCases * rejectedCasePenalty
	score -= in.NegativeReviews * negativeReviewPenalty
	score -= in.UnreviewedHighSeverity * unreviewedReportPenalty

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Service recomputes trust scores on demand and caches the last value, both
// on the instructor row and in redis.
type Service struct {
	db    *gorm.DB
	redis *redis.Client // optional; nil disables the cache
}

// NewService creates a trust score service
func NewService(db *gorm.DB, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

func cacheKey(instructorID uuid.UUID) string {
	return "trustscore:" + instructorID.String()
}

// Refresh recomputes the score for one instructor from current state and
// caches the result
func (s *Service) Refresh(ctx context.Context, instructorID uuid.UUID) (int, error) {
	var instructor models.Instructor
	if err := s.db.First(&instructor, "id = ?", instructorID).Error; err != nil {
		return 0, fmt.Errorf("error finding instructor: %w", err)
	}

	in, err := s.gatherInputs(&instructor)
	if err != nil {
		return 0, err
	}
	score := Compute(in)

	if err := s.db.Model(&models.Instructor{}).
		Where("id = ?", instructorID).
		Updates(map[string]interface{}{"trust_score": score, "updated_at": time.Now().UTC()}).Error; err != nil {
		return 0, fmt.Errorf("error caching trust score: %w", err)
	}

	if s.redis != nil {
		// cache write is best effort: a redis outage never fails the refresh
		_ = s.redis.Set(ctx, cacheKey(instructorID), score, cacheTTL).Err()
	}
	return score, nil
}

// Get returns the cached score when fresh, recomputing otherwise
func (s *Service) Get(ctx context.Context, instructorID uuid.UUID) (int, error) {
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, cacheKey(instructorID)).Result(); err == nil {
			if score, convErr := strconv.Atoi(val); convErr == nil {
				return score, nil
			}
		}
	}
	return s.Refresh(ctx, instructorID)
}

// RefreshAll recomputes every active instructor's score. Run daily so the
// account-age bonus lands without any triggering event.
func (s *Service) RefreshAll(ctx context.Context) error {
	var ids []uuid.UUID
	if err := s.db.Model(&models.Instructor{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("error listing instructors: %w", err)
	}
	for _, id := range ids {
		if _, err := s.Refresh(ctx, id); err != nil {
			return fmt.Errorf("error refreshing score for %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) gatherInputs(instructor *models.Instructor) (Inputs, error) {
	in := Inputs{
		EmailVerified: instructor.EmailVerified,
		PhoneVerified: instructor.PhoneVerified,
		AccountAge:    time.Since(instructor.CreatedAt),
	}

	counts := []struct {
		dest  *int
		query *gorm.DB
	}{
		{&in.ApprovedCases, s.db.Model(&models.VerificationCase{}).
			Where("instructor_id = ? AND status = ?", instructor.ID, models.CaseStatusApproved)},
		{&in.RejectedCases, s.db.Model(&models.VerificationCase{}).
			Where("instructor_id = ? AND status = ?", instructor.ID, models.CaseStatusRejected)},
		{&in.PositiveReviews, s.db.Model(&models.InstructorReview{}).
			Where("instructor_id = ? AND rating >= ?", instructor.ID, 4)},
		{&in.NegativeReviews, s.db.Model(&models.InstructorReview{}).
			Where("instructor_id = ? AND rating <= ?", instructor.ID, 2)},
		{&in.UnreviewedHighSeverity, s.db.Model(&models.SuspiciousActivityRecord{}).
			Where("instructor_id = ? AND reviewed = ? AND severity IN ?",
				instructor.ID, false, []models.ActivitySeverity{models.SeverityHigh, models.SeverityCritical})},
	}
	for _, c := range counts {
		var n int64
		if err := c.query.Count(&n).Error; err != nil {
			return Inputs{}, fmt.Errorf("error counting trust signals: %w", err)
		}
		*c.dest = int(n)
	}
	return in, nil
}
