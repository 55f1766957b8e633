package models

import (
	"tbs/src/types"
	"time"
)

// BookingIntent is a time-boxed soft hold on one (booking_date, time_slot)
// pair. Rows are never deleted; they double as an audit trail once
// confirmed or expired.
type BookingIntent struct {
	ID                uint               `gorm:"primarykey" json:"id"`
	BookingDate       time.Time          `gorm:"type:date;index:idx_booking_intents_slot" json:"booking_date"`
	TimeSlot          string             `gorm:"size:40;index:idx_booking_intents_slot" json:"time_slot"`
	Guests            int                `json:"guests"`
	TourID            string             `gorm:"size:40" json:"tour_id"`
	UnitPriceCents    *int64             `json:"unit_price_cents,omitempty"`
	TotalPriceCents   *int64             `json:"total_price_cents,omitempty"`
	CustomerFirstName string             `gorm:"size:80" json:"customer_first_name"`
	CustomerLastName  string             `gorm:"size:80" json:"customer_last_name"`
	CustomerPhone     string             `gorm:"size:40" json:"customer_phone"`
	CustomerEmail     string             `gorm:"size:160" json:"customer_email"`
	Status            types.IntentStatus `gorm:"size:20;default:'pending'" json:"status"`
	ExpiresAt         time.Time          `json:"expires_at"`
	PaymentProvider   *string            `gorm:"size:40" json:"payment_provider,omitempty"`
	PaymentReference  *string            `gorm:"size:120" json:"payment_reference,omitempty"`
	ConfirmedAt       *time.Time         `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
}
