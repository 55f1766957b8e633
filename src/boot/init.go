package boot

import (
	"log"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"tbs/src/utils"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.BookingIntent{},
		&models.Appointment{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	ensureLegacyColumns(db)

	return db
}

// ensureLegacyColumns upgrades tables created by earlier deployments that
// predate the customer and pricing columns. AutoMigrate covers fresh
// installs; these statements cover the in-place ones.
func ensureLegacyColumns(db *gorm.DB) {
	statements := []string{
		`ALTER TABLE IF EXISTS booking_intents
			ADD COLUMN IF NOT EXISTS tour_id VARCHAR(40),
			ADD COLUMN IF NOT EXISTS customer_first_name VARCHAR(80),
			ADD COLUMN IF NOT EXISTS customer_last_name VARCHAR(80),
			ADD COLUMN IF NOT EXISTS customer_phone VARCHAR(40),
			ADD COLUMN IF NOT EXISTS customer_email VARCHAR(160),
			ADD COLUMN IF NOT EXISTS unit_price_cents BIGINT,
			ADD COLUMN IF NOT EXISTS total_price_cents BIGINT,
			ADD COLUMN IF NOT EXISTS payment_provider VARCHAR(40),
			ADD COLUMN IF NOT EXISTS payment_reference VARCHAR(120),
			ADD COLUMN IF NOT EXISTS confirmed_at TIMESTAMPTZ`,
		`ALTER TABLE IF EXISTS appointments
			ADD COLUMN IF NOT EXISTS tour_id VARCHAR(40),
			ADD COLUMN IF NOT EXISTS customer_first_name VARCHAR(80),
			ADD COLUMN IF NOT EXISTS customer_last_name VARCHAR(80),
			ADD COLUMN IF NOT EXISTS customer_phone VARCHAR(40),
			ADD COLUMN IF NOT EXISTS customer_email VARCHAR(160),
			ADD COLUMN IF NOT EXISTS unit_price_cents BIGINT,
			ADD COLUMN IF NOT EXISTS total_price_cents BIGINT,
			ADD COLUMN IF NOT EXISTS payment_provider VARCHAR(40),
			ADD COLUMN IF NOT EXISTS payment_reference VARCHAR(120)`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			log.Fatalf("error ensuring columns: %s", err.Error())
		}
	}
}

// InitScheduler starts the background jobs: the stale-intent sweep every
// minute and the security-state cleanup every five. securityCleanup is
// injected so boot stays ignorant of the in-memory auth stores.
func InitScheduler(securityCleanup func()) {
	sweep, err := lib.CreateCronJob(func() {
		runID := uuid.NewString()
		expired, err := utils.ExpireStaleIntents()
		if err != nil {
			log.Printf("[sweep %s] error expiring intents: %s\n", runID, err.Error())
			return
		}
		if expired > 0 {
			log.Printf("[sweep %s] expired %d stale intents\n", runID, expired)
		}
	}, time.Minute)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	cleanup, err := lib.CreateCronJob(securityCleanup, 5*time.Minute)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	log.Printf("Job IDs: sweep=%s cleanup=%s\n", *sweep, *cleanup)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}
