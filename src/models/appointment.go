package models

import (
	"tbs/src/types"
	"time"
)

// Appointment is a confirmed booking that durably occupies slot capacity.
// Created exactly once per confirmed intent; removed only by admin action.
type Appointment struct {
	ID                uint                    `gorm:"primarykey" json:"id"`
	BookingDate       time.Time               `gorm:"type:date;index:idx_appointments_slot" json:"booking_date"`
	TimeSlot          string                  `gorm:"size:40;index:idx_appointments_slot" json:"time_slot"`
	Guests            int                     `json:"guests"`
	TourID            string                  `gorm:"size:40" json:"tour_id"`
	UnitPriceCents    *int64                  `json:"unit_price_cents,omitempty"`
	TotalPriceCents   *int64                  `json:"total_price_cents,omitempty"`
	CustomerFirstName string                  `gorm:"size:80" json:"customer_first_name"`
	CustomerLastName  string                  `gorm:"size:80" json:"customer_last_name"`
	CustomerPhone     string                  `gorm:"size:40" json:"customer_phone"`
	CustomerEmail     string                  `gorm:"size:160" json:"customer_email"`
	PaymentProvider   string                  `gorm:"size:40" json:"payment_provider"`
	PaymentReference  *string                 `gorm:"size:120" json:"payment_reference,omitempty"`
	Status            types.AppointmentStatus `gorm:"size:20;default:'confirmed'" json:"status"`
	CreatedAt         time.Time               `gorm:"autoCreateTime" json:"created_at"`
}
