package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/queue"
	"github.com/treinacnh/backend/internal/security/audit"
	"github.com/treinacnh/backend/internal/services/blacklist"
	"github.com/treinacnh/backend/internal/services/compliance"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Instructor{},
		&models.InstructorReview{},
		&models.VerificationCase{},
		&models.BlacklistEntry{},
		&models.SuspiciousActivityRecord{},
		&audit.Entry{},
		&queue.Job{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	auditLogger := audit.NewLogger(db)
	return NewService(db, queue.NewQueue(db, 1), auditLogger, compliance.NewService(db, auditLogger), nil)
}

func createInstructor(t *testing.T, db *gorm.DB) *models.Instructor {
	instructor := models.Instructor{
		FullName: "Carlos Pereira",
		Email:    uuid.NewString() + "@example.com",
	}
	require.NoError(t, db.Create(&instructor).Error)
	return &instructor
}

func reloadInstructor(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Instructor {
	var instructor models.Instructor
	require.NoError(t, db.First(&instructor, "id = ?", id).Error)
	return &instructor
}

func submit(t *testing.T, svc *Service, instructorID uuid.UUID, kind models.DocumentKind) *models.VerificationCase {
	vc, err := svc.SubmitDocument(instructorID, kind, "/uploads/"+uuid.NewString()+".pdf", nil)
	require.NoError(t, err)
	return vc
}

func TestSubmitDocumentCreatesPendingCase(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)

	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	assert.Equal(t, models.CaseStatusPending, vc.Status)
	assert.Nil(t, vc.ReviewerID)
	assert.Nil(t, vc.DecidedAt)
	assert.Nil(t, vc.Outcome)
	assert.False(t, vc.SubmittedAt.IsZero())

	// One processing job enqueued
	var jobs []queue.Job
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.JobTypeProcessDocument, jobs[0].Type)
	assert.Equal(t, queue.JobStatusPending, jobs[0].Status)

	// One submission audit entry, committed with the case
	trail, err := audit.NewLogger(db).SubjectTrail("verification_case", vc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, audit.ActionDocumentSubmitted, trail[0].Action)
}

func TestSubmitDocumentRejectsUnknownKind(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)

	_, err := svc.SubmitDocument(instructor.ID, models.DocumentKind("passport"), "/uploads/x.pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidDocumentKind)
}

func TestSubmitDocumentUnknownInstructor(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.SubmitDocument(uuid.New(), models.DocumentKindCNH, "/uploads/x.pdf", nil)
	assert.ErrorIs(t, err, ErrInstructorNotFound)
}

func TestApproveTransitionsCase(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	require.NoError(t, svc.Approve(context.Background(), vc.ID, reviewer, "looks good"))

	var got models.VerificationCase
	require.NoError(t, db.First(&got, "id = ?", vc.ID).Error)
	assert.Equal(t, models.CaseStatusApproved, got.Status)
	require.NotNil(t, got.ReviewerID)
	assert.Equal(t, reviewer, *got.ReviewerID)
	require.NotNil(t, got.DecisionNotes)
	assert.Equal(t, "looks good", *got.DecisionNotes)
	assert.NotNil(t, got.DecidedAt)
}

func TestApproveNotesOptional(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	assert.NoError(t, svc.Approve(context.Background(), vc.ID, uuid.New(), ""))
}

func TestSecondDecisionFailsWithInvalidTransition(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	require.NoError(t, svc.Approve(context.Background(), vc.ID, reviewer, ""))

	assert.ErrorIs(t, svc.Approve(context.Background(), vc.ID, reviewer, ""), ErrInvalidTransition)
	assert.ErrorIs(t, svc.Reject(context.Background(), vc.ID, reviewer, "changed my mind"), ErrInvalidTransition)

	// The failed second decision must not write a second audit entry
	trail, err := audit.NewLogger(db).SubjectTrail("verification_case", vc.ID)
	require.NoError(t, err)
	decisions := 0
	for _, e := range trail {
		if e.Action == audit.ActionDocumentApproved || e.Action == audit.ActionDocumentRejected {
			decisions++
		}
	}
	assert.Equal(t, 1, decisions)

	// And the case keeps its first decision
	var got models.VerificationCase
	require.NoError(t, db.First(&got, "id = ?", vc.ID).Error)
	assert.Equal(t, models.CaseStatusApproved, got.Status)
}

func TestApproveMissingCase(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	assert.ErrorIs(t, svc.Approve(context.Background(), uuid.New(), uuid.New(), ""), ErrCaseNotFound)
}

func TestRejectRequiresNotes(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	assert.ErrorIs(t, svc.Reject(context.Background(), vc.ID, uuid.New(), ""), ErrValidationRequired)
	assert.ErrorIs(t, svc.Reject(context.Background(), vc.ID, uuid.New(), "   "), ErrValidationRequired)

	// Case stays pending and undecided
	var got models.VerificationCase
	require.NoError(t, db.First(&got, "id = ?", vc.ID).Error)
	assert.Equal(t, models.CaseStatusPending, got.Status)
	assert.Nil(t, got.ReviewerID)
}

func TestRejectRecordsNotesAndAudit(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	require.NoError(t, svc.Reject(context.Background(), vc.ID, reviewer, "photo unreadable"))

	var got models.VerificationCase
	require.NoError(t, db.First(&got, "id = ?", vc.ID).Error)
	assert.Equal(t, models.CaseStatusRejected, got.Status)
	require.NotNil(t, got.DecisionNotes)
	assert.Equal(t, "photo unreadable", *got.DecisionNotes)

	trail, err := audit.NewLogger(db).SubjectTrail("verification_case", vc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, audit.ActionDocumentRejected, trail[1].Action)
}

func TestVerifiedFlagRequiresAllMandatoryKinds(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	cnh := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	require.NoError(t, svc.Approve(context.Background(), cnh.ID, reviewer, ""))

	// Only one of two mandatory kinds approved yet
	assert.False(t, reloadInstructor(t, db, instructor.ID).Verified)

	cert := submit(t, svc, instructor.ID, models.DocumentKindCertificate)
	require.NoError(t, svc.Approve(context.Background(), cert.ID, reviewer, ""))

	assert.True(t, reloadInstructor(t, db, instructor.ID).Verified)

	// Exactly one INSTRUCTOR_VERIFIED audit entry: the flag flipped once
	entries, err := audit.NewLogger(db).SubjectTrail("instructor", instructor.ID)
	require.NoError(t, err)
	verifiedEvents := 0
	for _, e := range entries {
		if e.Action == audit.ActionInstructorVerified {
			verifiedEvents++
		}
	}
	assert.Equal(t, 1, verifiedEvents)
}

func TestOptionalKindsDoNotGateVerification(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	vehicle := submit(t, svc, instructor.ID, models.DocumentKindVehicle)
	require.NoError(t, svc.Approve(context.Background(), vehicle.ID, reviewer, ""))
	assert.False(t, reloadInstructor(t, db, instructor.ID).Verified)

	cnh := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	cert := submit(t, svc, instructor.ID, models.DocumentKindCertificate)
	require.NoError(t, svc.Approve(context.Background(), cnh.ID, reviewer, ""))
	require.NoError(t, svc.Approve(context.Background(), cert.ID, reviewer, ""))
	assert.True(t, reloadInstructor(t, db, instructor.ID).Verified)
}

func TestRejectionRevokesVerifiedFlag(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	cnh := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	cert := submit(t, svc, instructor.ID, models.DocumentKindCertificate)
	require.NoError(t, svc.Approve(context.Background(), cnh.ID, reviewer, ""))
	require.NoError(t, svc.Approve(context.Background(), cert.ID, reviewer, ""))
	require.True(t, reloadInstructor(t, db, instructor.ID).Verified)

	// Rejecting any document, even an optional one, revokes verification
	vehicle := submit(t, svc, instructor.ID, models.DocumentKindVehicle)
	require.NoError(t, svc.Reject(context.Background(), vehicle.ID, reviewer, "plate mismatch"))

	got := reloadInstructor(t, db, instructor.ID)
	assert.False(t, got.Verified)

	entries, err := audit.NewLogger(db).SubjectTrail("instructor", instructor.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, audit.ActionInstructorRevoked, last.Action)
}

func TestRepeatedRejectionsOpenSuspiciousRecord(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	for i := 0; i < 3; i++ {
		vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)
		require.NoError(t, svc.Reject(context.Background(), vc.ID, reviewer, "illegible"))
	}

	var records []models.SuspiciousActivityRecord
	require.NoError(t, db.Where("instructor_id = ?", instructor.ID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActivityRepeatedRejections, records[0].Kind)
	assert.Equal(t, models.SeverityHigh, records[0].Severity)
}

func TestBulkApproveSkipsDecidedCases(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	a := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	b := submit(t, svc, instructor.ID, models.DocumentKindCertificate)
	c := submit(t, svc, instructor.ID, models.DocumentKindVehicle)

	// b was already rejected before the batch ran
	require.NoError(t, svc.Reject(context.Background(), b.ID, reviewer, "expired"))

	decided, err := svc.BulkApprove(context.Background(), []uuid.UUID{a.ID, b.ID, c.ID, uuid.New()}, reviewer, "")
	require.NoError(t, err)
	assert.Equal(t, 2, decided)

	var got models.VerificationCase
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, models.CaseStatusRejected, got.Status, "bulk approve must not overwrite a decided case")
}

func TestBulkRejectRequiresNotes(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.BulkReject(context.Background(), []uuid.UUID{uuid.New()}, uuid.New(), " ")
	assert.ErrorIs(t, err, ErrValidationRequired)
}

func TestListPendingFIFOWithCursor(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		vc := models.VerificationCase{
			InstructorID: instructor.ID,
			Kind:         models.DocumentKindCNH,
			FilePath:     "/uploads/doc.pdf",
			Status:       models.CaseStatusPending,
			SubmittedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&vc).Error)
		ids = append(ids, vc.ID)
	}

	page1, cursor, err := svc.ListPending(2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, ids[0], page1[0].ID)
	assert.Equal(t, ids[1], page1[1].ID)

	page2, cursor, err := svc.ListPending(2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, ids[2], page2[0].ID)
	assert.Equal(t, ids[3], page2[1].ID)

	page3, cursor, err := svc.ListPending(2, cursor)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[4], page3[0].ID)
	assert.Empty(t, cursor)
}

func TestListPendingExcludesDecided(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()

	a := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	b := submit(t, svc, instructor.ID, models.DocumentKindCertificate)
	require.NoError(t, svc.Approve(context.Background(), a.ID, reviewer, ""))

	pending, _, err := svc.ListPending(10, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestListPendingRejectsGarbageCursor(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	_, _, err := svc.ListPending(10, "not-a-cursor")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// Valid base64 that is not a cursor payload is rejected the same way
	_, _, err = svc.ListPending(10, "bm90LWEtY3Vyc29y")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestGetCaseWithTrail(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)
	require.NoError(t, svc.Approve(context.Background(), vc.ID, reviewer, "ok"))

	got, trail, err := svc.GetCase(vc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusApproved, got.Status)
	require.Len(t, trail, 2)
	assert.Equal(t, audit.ActionDocumentSubmitted, trail[0].Action)
	assert.Equal(t, audit.ActionDocumentApproved, trail[1].Action)

	_, _, err = svc.GetCase(uuid.New())
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestAdvisoryValidationDoesNotBlockApproval(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	instructor := createInstructor(t, db)
	reviewer := uuid.New()
	vc := submit(t, svc, instructor.ID, models.DocumentKindCNH)

	// Simulate a processing result with a failed checksum
	failed := false
	outcome := models.OutcomeChecksumFailed
	require.NoError(t, db.Model(&models.VerificationCase{}).Where("id = ?", vc.ID).Updates(map[string]interface{}{
		"cnh_valid": failed,
		"outcome":   outcome,
	}).Error)

	// The automated verdict is advisory: a reviewer may still approve
	assert.NoError(t, svc.Approve(context.Background(), vc.ID, reviewer, "verified manually against issuer registry"))
}

func TestBlacklistEntryBlocksFutureSubmissionsViaProcessing(t *testing.T) {
	db := setupTestDB(t)
	auditLogger := audit.NewLogger(db)
	blSvc := blacklist.NewService(db, auditLogger)

	_, err := blSvc.AddEntry(models.DocumentKindCNH, "12345678900", models.BlacklistReasonConfirmedFraud, nil, nil)
	require.NoError(t, err)

	hit, err := blSvc.IsBlacklisted(models.DocumentKindCNH, "123.456.789-00")
	require.NoError(t, err)
	assert.True(t, hit, "formatted and bare numbers must hit the same entry")
}
