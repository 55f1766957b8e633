package utils

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/models"
	"tbs/src/types"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type slotCountRow struct {
	DayKey   string
	TimeSlot string
	Total    int64
}

// MonthAvailability builds the public month grid: one record per day of
// the month, pre-seeded for every configured slot, with separate booked
// (confirmed appointments) and reserved (live pending intents) counters.
func MonthAvailability(monthKey string) (map[string]*types.DayAvailability, error) {
	cfg := config.Get()
	from, to, daysInMonth, err := MonthBounds(monthKey)
	if err != nil {
		return nil, err
	}
	slots := cfg.Slots()
	capacity := cfg.SlotCapacity()

	days := map[string]*types.DayAvailability{}
	for day := 1; day <= daysInMonth; day++ {
		dayKey := fmt.Sprintf("%s-%02d", monthKey, day)
		slotMap := map[string]*types.SlotAvailability{}
		for _, slot := range slots {
			slotMap[slot] = &types.SlotAvailability{Available: true, Capacity: capacity}
		}
		days[dayKey] = &types.DayAvailability{Slots: slotMap}
	}

	gdb := db.GetDb()
	var booked []slotCountRow
	if err := gdb.
		Model(&models.Appointment{}).
		Select("booking_date::text AS day_key, time_slot, COUNT(*) AS total").
		Where("booking_date >= ? AND booking_date < ? AND status = ?", from, to, types.APPOINTMENT_CONFIRMED).
		Group("booking_date, time_slot").
		Scan(&booked).
		Error; err != nil {
		return nil, err
	}
	var reserved []slotCountRow
	if err := gdb.
		Model(&models.BookingIntent{}).
		Select("booking_date::text AS day_key, time_slot, COUNT(*) AS total").
		Where("booking_date >= ? AND booking_date < ? AND status = ? AND expires_at > ?", from, to, types.INTENT_PENDING, time.Now()).
		Group("booking_date, time_slot").
		Scan(&reserved).
		Error; err != nil {
		return nil, err
	}

	for _, row := range booked {
		if day, ok := days[row.DayKey]; ok {
			if slot, ok := day.Slots[row.TimeSlot]; ok {
				slot.Booked = row.Total
			}
		}
	}
	for _, row := range reserved {
		if day, ok := days[row.DayKey]; ok {
			if slot, ok := day.Slots[row.TimeSlot]; ok {
				slot.Reserved = row.Total
			}
		}
	}
	for _, day := range days {
		allFull := true
		for _, slot := range slots {
			data := day.Slots[slot]
			data.Available = data.Booked+data.Reserved < int64(capacity)
			if data.Available {
				allFull = false
			}
		}
		day.AllSlotsFull = allFull
	}
	return days, nil
}

// RangeAvailability computes available|full per legacy fixed slot for
// every day in [from, to) from one unioned scan over confirmed
// appointments and not-yet-expired pending intents.
func RangeAvailability(from, to time.Time) (map[string]*types.RangeDayAvailability, error) {
	fromKey := FormatDateKey(from)
	toKey := FormatDateKey(to)

	gdb := db.GetDb()
	var occupied []slotCountRow
	if err := gdb.Raw(`
		SELECT booking_date::text AS day_key, time_slot, COUNT(*)::int AS total
		FROM (
			SELECT booking_date, time_slot
			FROM appointments
			WHERE booking_date >= ?::date
			  AND booking_date < ?::date
			  AND status = 'confirmed'

			UNION ALL

			SELECT booking_date, time_slot
			FROM booking_intents
			WHERE booking_date >= ?::date
			  AND booking_date < ?::date
			  AND status = 'pending'
			  AND expires_at > NOW()
		) AS occupied_rows
		WHERE time_slot IN ?
		GROUP BY booking_date, time_slot
	`, fromKey, toKey, fromKey, toKey, config.FixedAvailabilitySlots).
		Scan(&occupied).
		Error; err != nil {
		return nil, err
	}

	availability := map[string]*types.RangeDayAvailability{}
	for cursor := from; cursor.Before(to); cursor = cursor.AddDate(0, 0, 1) {
		slots := map[string]string{}
		for _, slot := range config.FixedAvailabilitySlots {
			slots[slot] = "available"
		}
		availability[FormatDateKey(cursor)] = &types.RangeDayAvailability{
			DayStatus: "available",
			Slots:     slots,
		}
	}
	for _, row := range occupied {
		day, ok := availability[row.DayKey]
		if !ok {
			continue
		}
		if _, ok := day.Slots[row.TimeSlot]; !ok {
			continue
		}
		if row.Total >= config.FixedAvailabilitySlotCapacity {
			day.Slots[row.TimeSlot] = "full"
		}
	}
	for _, day := range availability {
		allFull := true
		for _, slot := range config.FixedAvailabilitySlots {
			if day.Slots[slot] != "full" {
				allFull = false
				break
			}
		}
		if allFull {
			day.DayStatus = "full"
		}
	}
	return availability, nil
}

// CreateBookingIntent runs the admission check and inserts a pending
// intent. The check-then-insert pair is deliberately not serialized:
// intents are a soft reservation and may over-admit under concurrency;
// ConfirmBooking holds the authoritative capacity gate.
func CreateBookingIntent(body *types.CreateBookingIntentRequestBody) (*models.BookingIntent, error) {
	cfg := config.Get()
	date, err := ParseDateKey(body.Date)
	if err != nil {
		return nil, err
	}
	unitPriceCents, ok := ResolveTourPriceCents(body.TourID)
	if !ok {
		return nil, types.ErrPriceUnavailable
	}
	totalPriceCents := unitPriceCents * int64(body.Guests)
	now := time.Now()

	intent := models.BookingIntent{
		BookingDate:       date,
		TimeSlot:          body.TimeSlot,
		Guests:            body.Guests,
		TourID:            SanitizeCustomerField(body.TourID, 40),
		UnitPriceCents:    &unitPriceCents,
		TotalPriceCents:   &totalPriceCents,
		CustomerFirstName: SanitizeCustomerField(body.FirstName, 80),
		CustomerLastName:  SanitizeCustomerField(body.LastName, 80),
		CustomerPhone:     SanitizeCustomerField(body.Phone, 40),
		CustomerEmail:     strings.ToLower(SanitizeCustomerField(body.Email, 160)),
		Status:            types.INTENT_PENDING,
		ExpiresAt:         now.Add(cfg.IntentTTL()),
	}

	gdb := db.GetDb()
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var booked int64
		if err := tx.
			Model(&models.Appointment{}).
			Where("booking_date = ? AND time_slot = ? AND status = ?", date, body.TimeSlot, types.APPOINTMENT_CONFIRMED).
			Count(&booked).
			Error; err != nil {
			return err
		}
		var reserved int64
		if err := tx.
			Model(&models.BookingIntent{}).
			Where("booking_date = ? AND time_slot = ? AND status = ? AND expires_at > ?", date, body.TimeSlot, types.INTENT_PENDING, now).
			Count(&reserved).
			Error; err != nil {
			return err
		}
		if booked+reserved >= int64(cfg.SlotCapacity()) {
			return types.ErrSlotFull
		}
		return tx.Create(&intent).Error
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// ExpireStaleIntents transitions every overdue pending intent to expired.
// Idempotent; safe on any schedule.
func ExpireStaleIntents() (int64, error) {
	gdb := db.GetDb()
	res := gdb.
		Model(&models.BookingIntent{}).
		Where("status = ? AND expires_at <= ?", types.INTENT_PENDING, time.Now()).
		Update("status", types.INTENT_EXPIRED)
	return res.RowsAffected, res.Error
}

// ConfirmBooking converts a pending intent into a confirmed appointment.
// The whole protocol runs in one transaction with the intent row locked
// FOR UPDATE, so concurrent confirmations of the same intent serialize on
// the lock and the in-transaction capacity recount stays race-free. The
// expiry branch commits the pending→expired transition and still reports
// a conflict to the caller.
func ConfirmBooking(intentID uint, provider string, reference string) (*models.Appointment, error) {
	cfg := config.Get()
	now := time.Now()
	gdb := db.GetDb()

	tx := gdb.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var intent models.BookingIntent
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", intentID).
		First(&intent).
		Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrIntentNotFound
		}
		return nil, err
	}
	if intent.Status != types.INTENT_PENDING {
		tx.Rollback()
		return nil, types.ErrIntentProcessed
	}

	if !intent.ExpiresAt.After(now) {
		if err := tx.
			Model(&models.BookingIntent{}).
			Where("id = ?", intent.ID).
			Update("status", types.INTENT_EXPIRED).
			Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return nil, types.ErrIntentExpired
	}

	unitPriceCents := int64(-1)
	if intent.UnitPriceCents != nil && *intent.UnitPriceCents >= 0 {
		unitPriceCents = *intent.UnitPriceCents
	} else if resolved, ok := ResolveTourPriceCents(intent.TourID); ok {
		unitPriceCents = resolved
	} else {
		tx.Rollback()
		return nil, types.ErrPriceUnavailable
	}
	totalPriceCents := unitPriceCents * int64(intent.Guests)
	if intent.TotalPriceCents != nil && *intent.TotalPriceCents >= 0 {
		totalPriceCents = *intent.TotalPriceCents
	}

	var booked int64
	if err := tx.
		Model(&models.Appointment{}).
		Where("booking_date = ? AND time_slot = ? AND status = ?", intent.BookingDate, intent.TimeSlot, types.APPOINTMENT_CONFIRMED).
		Count(&booked).
		Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if booked >= int64(cfg.SlotCapacity()) {
		tx.Rollback()
		return nil, types.ErrSlotUnavailable
	}

	paymentReference := strings.TrimSpace(reference)
	if paymentReference == "" {
		paymentReference = fmt.Sprintf("%s_%d", strings.ToUpper(provider), now.UnixMilli())
	}

	appointment := models.Appointment{
		BookingDate:       intent.BookingDate,
		TimeSlot:          intent.TimeSlot,
		Guests:            intent.Guests,
		TourID:            intent.TourID,
		UnitPriceCents:    &unitPriceCents,
		TotalPriceCents:   &totalPriceCents,
		CustomerFirstName: intent.CustomerFirstName,
		CustomerLastName:  intent.CustomerLastName,
		CustomerPhone:     intent.CustomerPhone,
		CustomerEmail:     intent.CustomerEmail,
		PaymentProvider:   provider,
		PaymentReference:  &paymentReference,
		Status:            types.APPOINTMENT_CONFIRMED,
	}
	if err := tx.Create(&appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.
		Model(&models.BookingIntent{}).
		Where("id = ?", intent.ID).
		Updates(map[string]any{
			"status":            types.INTENT_CONFIRMED,
			"unit_price_cents":  unitPriceCents,
			"total_price_cents": totalPriceCents,
			"payment_provider":  provider,
			"payment_reference": paymentReference,
			"confirmed_at":      now,
		}).
		Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	log.Printf("Confirmed intent [%d] as appointment [%d]\n", intent.ID, appointment.ID)
	return &appointment, nil
}
