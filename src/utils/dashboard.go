package utils

import (
	"fmt"
	"math"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/models"
	"time"
)

// DashboardStats is the headline block of the admin dashboard. Revenue
// columns are always keyed to the server's current month; the dashboard's
// month parameter only drives the calendar.
type DashboardStats struct {
	TotalAppointments         int64 `json:"totalAppointments"`
	TodaysBookings            int64 `json:"todaysBookings"`
	RevenueMonthlyCents       int64 `json:"revenueMonthlyCents"`
	RevenuePreviousMonthCents int64 `json:"revenuePreviousMonthCents"`
	ActiveTours               int64 `json:"activeTours"`
}

// RevenueSeriesPoint is one month of the current year's revenue chart.
type RevenueSeriesPoint struct {
	Month        int     `json:"month"`
	RevenueCents int64   `json:"revenueCents"`
	RevenueEur   float64 `json:"revenueEur"`
}

// CalendarBusyDay marks one day of the requested month holding at least
// one confirmed appointment or live pending intent.
type CalendarBusyDay struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
}

// RecentAppointment carries the fields the activity feed renders.
type RecentAppointment struct {
	ID                uint
	CustomerFirstName string
	CustomerLastName  string
	TotalPriceCents   *int64
	UnitPriceCents    *int64
	Guests            int
	TourID            string
	Status            string
	PaymentReference  *string
	CreatedAt         time.Time
}

// effectiveRevenueSQL yields the per-row revenue expression used by every
// aggregate: stored total first, then unit*guests, then the price table
// keyed by tour_id, then zero. Mirrors ResolveEffectiveAmountCents so the
// dashboard and the appointment list can never disagree on amounts.
// Binds the price-table jsonb twice; jsonb_exists is used instead of the
// jsonb ? operator, which the driver would otherwise read as a bind slot.
func effectiveRevenueSQL(alias string) string {
	return fmt.Sprintf(`CASE
		WHEN %[1]s.total_price_cents IS NOT NULL AND %[1]s.total_price_cents >= 0 THEN %[1]s.total_price_cents
		WHEN %[1]s.unit_price_cents IS NOT NULL AND %[1]s.unit_price_cents >= 0 THEN %[1]s.unit_price_cents * GREATEST(%[1]s.guests, 0)
		WHEN jsonb_exists(?::jsonb, %[1]s.tour_id) THEN (?::jsonb ->> %[1]s.tour_id)::bigint * GREATEST(%[1]s.guests, 0)
		ELSE 0
	END`, alias)
}

// GetDashboardStats computes the headline counters. Sums run fully in
// SQL as ::bigint so large tallies never round-trip through float64.
func GetDashboardStats() (*DashboardStats, error) {
	gdb := db.GetDb()
	priceTable := config.TourPriceTableJSON()
	revenue := effectiveRevenueSQL("a")

	var stats DashboardStats
	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE status = 'confirmed') AS total_appointments,
			(SELECT COUNT(*) FROM appointments WHERE booking_date = CURRENT_DATE AND status = 'confirmed') AS todays_bookings,
			(
				SELECT COALESCE(SUM(%[1]s), 0)::bigint
				FROM appointments a
				WHERE a.status = 'confirmed'
				  AND booking_date >= DATE_TRUNC('month', CURRENT_DATE)::date
				  AND booking_date < (DATE_TRUNC('month', CURRENT_DATE) + INTERVAL '1 month')::date
			) AS revenue_monthly_cents,
			(
				SELECT COALESCE(SUM(%[1]s), 0)::bigint
				FROM appointments a
				WHERE a.status = 'confirmed'
				  AND booking_date >= (DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 month')::date
				  AND booking_date < DATE_TRUNC('month', CURRENT_DATE)::date
			) AS revenue_previous_month_cents,
			(
				SELECT COUNT(DISTINCT tour_id)
				FROM appointments
				WHERE status = 'confirmed' AND tour_id IS NOT NULL AND tour_id <> ''
			) AS active_tours
	`, revenue)
	if err := gdb.Raw(query, priceTable, priceTable, priceTable, priceTable).Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// RevenueSeries returns confirmed revenue per calendar month of the
// current year, zero-filled for months without bookings.
func RevenueSeries() ([]RevenueSeriesPoint, error) {
	gdb := db.GetDb()
	priceTable := config.TourPriceTableJSON()

	query := fmt.Sprintf(`
		SELECT months.month_index AS month,
		       COALESCE(SUM(%s), 0)::bigint AS revenue_cents
		FROM GENERATE_SERIES(1, 12) AS months(month_index)
		LEFT JOIN appointments a
		  ON EXTRACT(MONTH FROM a.booking_date) = months.month_index
		 AND EXTRACT(YEAR FROM a.booking_date) = EXTRACT(YEAR FROM CURRENT_DATE)
		 AND a.status = 'confirmed'
		GROUP BY months.month_index
		ORDER BY months.month_index
	`, effectiveRevenueSQL("a"))

	var points []RevenueSeriesPoint
	if err := gdb.Raw(query, priceTable, priceTable).Scan(&points).Error; err != nil {
		return nil, err
	}
	for i := range points {
		safe, err := SafeCents(points[i].RevenueCents, "dashboard.revenueSeries.revenueCents")
		if err != nil {
			return nil, err
		}
		points[i].RevenueEur = CentsToEur(safe)
	}
	return points, nil
}

// CalendarBusyDays lists the days of the month that hold at least one
// confirmed appointment or live pending intent, with per-day totals.
func CalendarBusyDays(monthKey string) ([]CalendarBusyDay, error) {
	from, to, _, err := MonthBounds(monthKey)
	if err != nil {
		return nil, err
	}
	gdb := db.GetDb()
	var days []CalendarBusyDay
	if err := gdb.Raw(`
		SELECT booking_date::text AS day, COUNT(*) AS total
		FROM (
			SELECT booking_date FROM appointments
			WHERE booking_date >= ? AND booking_date < ? AND status = 'confirmed'
			UNION ALL
			SELECT booking_date FROM booking_intents
			WHERE booking_date >= ? AND booking_date < ? AND status = 'pending' AND expires_at > NOW()
		) AS calendar_rows
		GROUP BY booking_date
		ORDER BY booking_date
	`, from, to, from, to).Scan(&days).Error; err != nil {
		return nil, err
	}
	return days, nil
}

// RecentActivity returns the latest appointments, newest first.
func RecentActivity(limit int) ([]RecentAppointment, error) {
	gdb := db.GetDb()
	var rows []RecentAppointment
	if err := gdb.
		Model(&models.Appointment{}).
		Select("id, customer_first_name, customer_last_name, total_price_cents, unit_price_cents, guests, tour_id, status, payment_reference, created_at").
		Order("created_at DESC").
		Limit(limit).
		Scan(&rows).
		Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GrowthPercent compares this month's revenue against the previous one,
// rounded to one decimal. A previous month of zero reads as +100% when
// anything was earned, 0 otherwise, to keep the widget stable on fresh
// installs.
func GrowthPercent(current, previous int64) float64 {
	if previous > 0 {
		return math.Round((float64(current-previous)/float64(previous))*1000) / 10
	}
	if current > 0 {
		return 100
	}
	return 0
}
