package types

import (
	"errors"
	"fmt"
)

type IntentStatus string
type AppointmentStatus string

const (
	INTENT_PENDING   IntentStatus = "pending"
	INTENT_CONFIRMED IntentStatus = "confirmed"
	INTENT_EXPIRED   IntentStatus = "expired"
)

const (
	APPOINTMENT_CONFIRMED AppointmentStatus = "confirmed"
	APPOINTMENT_CANCELLED AppointmentStatus = "cancelled"
)

const (
	PAYMENT_MODE_MOCK   = "mock"
	PAYMENT_MODE_PAYPAL = "paypal"
)

// Domain errors surfaced by the booking flow. Handlers translate them to
// HTTP statuses; the messages are the user-facing (localized) ones.
var (
	ErrIntentNotFound   = errors.New("Prenotazione buffer non trovata.")
	ErrIntentProcessed  = errors.New("Intent gia processato.")
	ErrIntentExpired    = errors.New("Intent scaduto, riprova.")
	ErrPriceUnavailable = errors.New("Prezzo tour non disponibile per la conferma.")
	ErrSlotUnavailable  = errors.New("Fascia oraria non piu disponibile.")
	ErrSlotFull         = errors.New("Fascia oraria esaurita.")
)

// OverflowError marks a monetary total that left the JSON-safe integer
// range. It is a data-integrity bug, not a user error.
type OverflowError struct {
	Field string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("Overflow numerico su %s.", e.Field)
}

type CreateBookingIntentRequestBody struct {
	Date      string `json:"date" binding:"required,datekey,bookingdate"`
	TimeSlot  string `json:"timeSlot" binding:"required,timeslot"`
	Guests    int    `json:"guests" binding:"required,gte=1,lte=8"`
	TourID    string `json:"tourId" binding:"required,tourprice"`
	FirstName string `json:"firstName" binding:"required,personname"`
	LastName  string `json:"lastName" binding:"required,personname"`
	Phone     string `json:"phone" binding:"required,phoneshape"`
	Email     string `json:"email" binding:"required,emailshape"`
}

type ConfirmBookingRequestBody struct {
	IntentID         uint   `json:"intentId"`
	PaymentProvider  string `json:"paymentProvider"`
	PaymentReference string `json:"paymentReference,omitempty"`
}

type AdminLoginRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminAppointmentsQuery struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"pageSize,default=8"`
	Search   string `form:"search"`
}

type RangeAvailabilityQuery struct {
	FromDate string `form:"from_date"`
	ToDate   string `form:"to_date"`
}

// SlotAvailability is one cell of the public month grid.
type SlotAvailability struct {
	Available bool  `json:"available"`
	Booked    int64 `json:"booked"`
	Reserved  int64 `json:"reserved"`
	Capacity  int   `json:"capacity"`
}

type DayAvailability struct {
	AllSlotsFull bool                         `json:"allSlotsFull"`
	Slots        map[string]*SlotAvailability `json:"slots"`
}

// RangeDayAvailability collapses each slot to available|full.
type RangeDayAvailability struct {
	DayStatus string            `json:"dayStatus"`
	Slots     map[string]string `json:"slots"`
}
