package main

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/models"
	"tbs/src/types"
	"tbs/src/utils"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type adminAppointmentRow struct {
	ID                uint
	BookingDate       string
	TimeSlot          string
	Guests            int
	TourID            string
	CustomerFirstName string
	CustomerLastName  string
	CustomerPhone     string
	CustomerEmail     string
	Status            string
	PaymentProvider   string
	PaymentReference  *string
	UnitPriceCents    *int64
	TotalPriceCents   *int64
	CreatedAt         time.Time
}

// paymentStatus derives the three-state payment view the admin UI shows.
func paymentStatus(row *adminAppointmentRow) string {
	if row.Status == string(types.APPOINTMENT_CANCELLED) {
		return "refunded"
	}
	if row.PaymentReference == nil || strings.TrimSpace(*row.PaymentReference) == "" {
		return "pending"
	}
	return "paid"
}

func adminLoginHandler(ctx *gin.Context) {
	cfg := config.Get()
	if !cfg.AdminAuthConfigured() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"message": "Autenticazione admin non configurata."})
		return
	}

	var body types.AdminLoginRequestBody
	_ = ctx.ShouldBindJSON(&body)
	email := strings.ToLower(utils.SanitizeCustomerField(body.Email, 160))
	password := body.Password
	now := time.Now()

	ipKey := ctx.ClientIP()
	emailKey := email
	if emailKey == "" {
		emailKey = "__missing__"
	}

	remaining := loginAttemptsByIP.RemainingLock(ipKey, now)
	if byEmail := loginAttemptsByEmail.RemainingLock(emailKey, now); byEmail > remaining {
		remaining = byEmail
	}
	if remaining > 0 {
		seconds := int64(remaining.Seconds())
		if remaining%time.Second != 0 {
			seconds++
		}
		ctx.Header("Retry-After", strconv.FormatInt(seconds, 10))
		ctx.JSON(http.StatusTooManyRequests, gin.H{
			"message": fmt.Sprintf("Troppi tentativi di accesso. Riprova tra %d secondi.", seconds),
		})
		return
	}

	registerFailure := func() time.Duration {
		lock := loginAttemptsByIP.RegisterFailure(ipKey, cfg.LoginMaxAttemptsPerIP(), now)
		if byEmail := loginAttemptsByEmail.RegisterFailure(emailKey, cfg.LoginMaxAttemptsPerEmail(), now); byEmail > lock {
			lock = byEmail
		}
		return lock
	}

	if email == "" || password == "" {
		registerFailure()
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Email e password sono obbligatori."})
		return
	}

	validCredentials := utils.SafeTimingEqualText(email, strings.ToLower(cfg.AdminEmail)) &&
		utils.VerifyAdminPassword(password, cfg.AdminPasswordHash, cfg.AdminPassword)
	if !validCredentials {
		if lock := registerFailure(); lock > 0 {
			seconds := int64(lock.Seconds())
			if lock%time.Second != 0 {
				seconds++
			}
			ctx.Header("Retry-After", strconv.FormatInt(seconds, 10))
		}
		ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Credenziali non valide."})
		return
	}

	loginAttemptsByIP.Clear(ipKey)
	loginAttemptsByEmail.Clear(emailKey)

	session, err := adminSessions.Create(strings.ToLower(cfg.AdminEmail), cfg.SessionTTL())
	if err != nil {
		log.Printf("session issue failed: %s\n", err.Error())
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante il login."})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"token":     session.Token,
		"email":     session.Email,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/admin/me", func(ctx *gin.Context) {
			expires := ctx.MustGet("admin_expires").(time.Time)
			ctx.JSON(http.StatusOK, gin.H{
				"email":     ctx.GetString("admin_email"),
				"expiresAt": expires.UTC().Format(time.RFC3339),
			})
		}).
		POST("/admin/logout", func(ctx *gin.Context) {
			adminSessions.Delete(ctx.GetString("admin_token"))
			ctx.JSON(http.StatusOK, gin.H{"ok": true})
		}).
		GET("/admin/appointments", func(ctx *gin.Context) {
			var query types.AdminAppointmentsQuery
			_ = ctx.ShouldBindQuery(&query)
			page := query.Page
			if page < 1 {
				page = 1
			}
			pageSize := query.PageSize
			if pageSize < 1 {
				pageSize = 8
			} else if pageSize > 50 {
				pageSize = 50
			}
			search := utils.SanitizeCustomerField(query.Search, 120)

			gdb := db.GetDb()
			base := gdb.Model(&models.Appointment{})
			if search != "" {
				pattern := "%" + search + "%"
				base = base.Where(
					"CONCAT_WS(' ', customer_first_name, customer_last_name) ILIKE ? OR COALESCE(tour_id, '') ILIKE ? OR id::text ILIKE ?",
					pattern, pattern, pattern,
				)
			}

			var total int64
			if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
				log.Printf("admin appointments count failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento appuntamenti admin."})
				return
			}

			var rows []adminAppointmentRow
			if err := base.
				Select("id, booking_date::text AS booking_date, time_slot, guests, tour_id, customer_first_name, customer_last_name, customer_phone, customer_email, status, payment_provider, payment_reference, unit_price_cents, total_price_cents, created_at").
				Order("booking_date DESC, created_at DESC").
				Limit(pageSize).
				Offset((page - 1) * pageSize).
				Scan(&rows).
				Error; err != nil {
				log.Printf("admin appointments scan failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento appuntamenti admin."})
				return
			}

			out := make([]gin.H, 0, len(rows))
			for i := range rows {
				row := &rows[i]
				amountCents, err := utils.SafeCents(utils.ResolveEffectiveAmountCents(utils.PricedRow{
					Guests:          row.Guests,
					UnitPriceCents:  row.UnitPriceCents,
					TotalPriceCents: row.TotalPriceCents,
					TourID:          row.TourID,
				}), "appointments.amountCents")
				if err != nil {
					log.Printf("admin appointments amount overflow [%d]: %s\n", row.ID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento appuntamenti admin."})
					return
				}
				customerName := strings.TrimSpace(utils.SanitizeCustomerField(row.CustomerFirstName, 80) + " " + utils.SanitizeCustomerField(row.CustomerLastName, 80))
				if customerName == "" {
					customerName = "N/D"
				}
				out = append(out, gin.H{
					"id":              row.ID,
					"bookingCode":     fmt.Sprintf("BK-%03d", row.ID),
					"customerName":    customerName,
					"customerPhone":   utils.SanitizeCustomerField(row.CustomerPhone, 40),
					"customerEmail":   strings.ToLower(utils.SanitizeCustomerField(row.CustomerEmail, 160)),
					"tourType":        utils.ResolveTourLabel(row.TourID),
					"date":            row.BookingDate,
					"time":            row.TimeSlot,
					"guests":          row.Guests,
					"status":          row.Status,
					"paymentStatus":   paymentStatus(row),
					"paymentProvider": row.PaymentProvider,
					"amountCents":     amountCents,
					"amountEur":       utils.CentsToEur(amountCents),
					"createdAt":       row.CreatedAt,
				})
			}

			ctx.JSON(http.StatusOK, gin.H{
				"page":     page,
				"pageSize": pageSize,
				"total":    total,
				"rows":     out,
			})
		}).
		DELETE("/admin/appointments/:id", func(ctx *gin.Context) {
			id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
			if err != nil || id == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "ID prenotazione non valido."})
				return
			}
			gdb := db.GetDb()
			res := gdb.Delete(&models.Appointment{}, id)
			if res.Error != nil {
				log.Printf("admin appointment delete failed [%d]: %s\n", id, res.Error.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante l'eliminazione della prenotazione."})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"message": "Prenotazione non trovata."})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ok": true, "deletedId": id})
		}).
		GET("/admin/dashboard", func(ctx *gin.Context) {
			monthKey := utils.SanitizeCustomerField(ctx.Query("month"), 7)
			if !utils.IsValidMonthKey(monthKey) {
				monthKey = time.Now().Format(config.MONTH_KEY_FORMAT)
			}
			monthStart, _ := time.Parse(config.MONTH_KEY_FORMAT, monthKey)

			stats, err := utils.GetDashboardStats()
			if err == nil {
				_, err = utils.SafeCents(stats.RevenueMonthlyCents, "dashboard.revenueMonthlyCents")
			}
			if err == nil {
				_, err = utils.SafeCents(stats.RevenuePreviousMonthCents, "dashboard.revenuePreviousMonthCents")
			}
			if err != nil {
				log.Printf("dashboard stats failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento dashboard admin."})
				return
			}
			series, err := utils.RevenueSeries()
			if err != nil {
				log.Printf("dashboard revenue series failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento dashboard admin."})
				return
			}
			bookedDays, err := utils.CalendarBusyDays(monthKey)
			if err != nil {
				log.Printf("dashboard calendar failed [%s]: %s\n", monthKey, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento dashboard admin."})
				return
			}
			recent, err := utils.RecentActivity(8)
			if err != nil {
				log.Printf("dashboard activity failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento dashboard admin."})
				return
			}

			recentActivity := make([]gin.H, 0, len(recent))
			for i := range recent {
				row := &recent[i]
				fullName := strings.TrimSpace(utils.SanitizeCustomerField(row.CustomerFirstName, 80) + " " + utils.SanitizeCustomerField(row.CustomerLastName, 80))
				if fullName == "" {
					fullName = "Cliente"
				}
				amountCents, err := utils.SafeCents(utils.ResolveEffectiveAmountCents(utils.PricedRow{
					Guests:          row.Guests,
					UnitPriceCents:  row.UnitPriceCents,
					TotalPriceCents: row.TotalPriceCents,
					TourID:          row.TourID,
				}), "dashboard.recentActivity.amountCents")
				if err != nil {
					log.Printf("dashboard activity amount overflow [%d]: %s\n", row.ID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore nel caricamento dashboard admin."})
					return
				}
				switch {
				case row.Status == string(types.APPOINTMENT_CANCELLED):
					recentActivity = append(recentActivity, gin.H{
						"type":    "cancelled",
						"message": fmt.Sprintf("Prenotazione annullata da %s", fullName),
						"at":      row.CreatedAt,
					})
				case row.PaymentReference != nil && *row.PaymentReference != "":
					recentActivity = append(recentActivity, gin.H{
						"type":    "payment",
						"message": fmt.Sprintf("Pagamento ricevuto - EUR %v da %s", utils.CentsToEur(amountCents), fullName),
						"at":      row.CreatedAt,
					})
				default:
					recentActivity = append(recentActivity, gin.H{
						"type":    "booking",
						"message": fmt.Sprintf("Nuova prenotazione da %s", fullName),
						"at":      row.CreatedAt,
					})
				}
			}

			ctx.JSON(http.StatusOK, gin.H{
				"month": monthKey,
				"stats": gin.H{
					"totalAppointments":    stats.TotalAppointments,
					"todaysBookings":       stats.TodaysBookings,
					"revenueMonthlyCents":  stats.RevenueMonthlyCents,
					"revenueMonthlyEur":    utils.CentsToEur(stats.RevenueMonthlyCents),
					"revenueGrowthPercent": utils.GrowthPercent(stats.RevenueMonthlyCents, stats.RevenuePreviousMonthCents),
					"activeTours":          stats.ActiveTours,
				},
				"revenueSeries": series,
				"calendar": gin.H{
					"year":       monthStart.Year(),
					"month":      int(monthStart.Month()),
					"bookedDays": bookedDays,
				},
				"recentActivity": recentActivity,
			})
		})
	return g
}
