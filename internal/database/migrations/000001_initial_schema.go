package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/queue"
	"github.com/treinacnh/backend/internal/security/audit"
	"gorm.io/gorm"
)

func initialSchemaMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_initial_schema",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Instructor{},
				&models.InstructorReview{},
				&models.VerificationCase{},
				&models.BlacklistEntry{},
				&models.SuspiciousActivityRecord{},
				&audit.Entry{},
				&queue.Job{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				"jobs",
				"audit_entries",
				"suspicious_activity_records",
				"blacklist_entries",
				"verification_cases",
				"instructor_reviews",
				"instructors",
			)
		},
	}
}

func init() {
	migrationsList = append(migrationsList, initialSchemaMigration())
}
