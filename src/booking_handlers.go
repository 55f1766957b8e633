package main

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// intentFieldMessages maps the first failing (field, tag) pair of the
// intent payload to its localized message. Struct field order drives
// which violation wins when several fields are bad at once.
var intentFieldMessages = map[[2]string]string{
	{"Date", "required"}:        "Data non valida. Usa YYYY-MM-DD.",
	{"Date", "datekey"}:         "Data non valida. Usa YYYY-MM-DD.",
	{"Date", "bookingdate"}:     "Non puoi prenotare nel passato.",
	{"TimeSlot", "required"}:    "Fascia oraria non valida.",
	{"TimeSlot", "timeslot"}:    "Fascia oraria non valida.",
	{"Guests", "required"}:      "Numero ospiti non valido.",
	{"Guests", "gte"}:           "Numero ospiti non valido.",
	{"Guests", "lte"}:           "Numero ospiti non valido.",
	{"TourID", "required"}:      "Tour non valido.",
	{"TourID", "tourprice"}:     "Prezzo tour non configurato.",
	{"FirstName", "required"}:   "Nome o cognome non valido.",
	{"FirstName", "personname"}: "Nome o cognome non valido.",
	{"LastName", "required"}:    "Nome o cognome non valido.",
	{"LastName", "personname"}:  "Nome o cognome non valido.",
	{"Phone", "required"}:       "Numero di cellulare non valido.",
	{"Phone", "phoneshape"}:     "Numero di cellulare non valido.",
	{"Email", "required"}:       "Email non valida.",
	{"Email", "emailshape"}:     "Email non valida.",
}

func intentValidationMessage(err error) string {
	var violations validator.ValidationErrors
	if errors.As(err, &violations) && len(violations) > 0 {
		first := violations[0]
		if message, ok := intentFieldMessages[[2]string{first.Field(), first.Tag()}]; ok {
			return message
		}
	}
	return "Payload non valido."
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/health", func(ctx *gin.Context) {
			gdb := db.GetDb()
			if err := gdb.Exec("SELECT 1").Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Database non raggiungibile."})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ok": true})
		}).
		GET("/payment-config", func(ctx *gin.Context) {
			cfg := config.Get()
			ctx.JSON(http.StatusOK, gin.H{
				"mode":      cfg.EffectivePaymentMode(),
				"providers": cfg.AllowedPaymentProviders(),
			})
		}).
		POST("/booking-intents", func(ctx *gin.Context) {
			var body types.CreateBookingIntentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": intentValidationMessage(err)})
				return
			}
			intent, err := utils.CreateBookingIntent(&body)
			if err != nil {
				if errors.Is(err, types.ErrSlotFull) {
					ctx.JSON(http.StatusConflict, gin.H{"message": err.Error()})
					return
				}
				if errors.Is(err, types.ErrPriceUnavailable) {
					ctx.JSON(http.StatusBadRequest, gin.H{"message": "Prezzo tour non configurato."})
					return
				}
				log.Printf("intent admission failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante la creazione del buffer prenotazione."})
				return
			}
			totalEur, err := utils.CentsToEurChecked(*intent.TotalPriceCents, "totalPriceCents")
			if err != nil {
				log.Printf("intent amount overflow [%d]: %s\n", intent.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante la creazione del buffer prenotazione."})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"intentId":        intent.ID,
				"expiresAt":       intent.ExpiresAt,
				"guests":          intent.Guests,
				"unitPriceCents":  *intent.UnitPriceCents,
				"totalPriceCents": *intent.TotalPriceCents,
				"totalPriceEur":   totalEur,
				"status":          types.INTENT_PENDING,
			})
		}).
		POST("/booking-intents/expire", func(ctx *gin.Context) {
			expired, err := utils.ExpireStaleIntents()
			if err != nil {
				log.Printf("intent sweep failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante la scadenza intent."})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"expiredIntents": expired})
		}).
		POST("/bookings/confirm", func(ctx *gin.Context) {
			var body types.ConfirmBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil || body.IntentID == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Intent ID mancante."})
				return
			}
			cfg := config.Get()
			provider := strings.ToLower(strings.TrimSpace(body.PaymentProvider))
			if !cfg.SupportsPaymentProvider(provider) {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Metodo di pagamento non supportato per la modalita corrente."})
				return
			}
			appointment, err := utils.ConfirmBooking(body.IntentID, provider, body.PaymentReference)
			if err != nil {
				switch {
				case errors.Is(err, types.ErrIntentNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
				case errors.Is(err, types.ErrIntentProcessed),
					errors.Is(err, types.ErrIntentExpired),
					errors.Is(err, types.ErrPriceUnavailable),
					errors.Is(err, types.ErrSlotUnavailable):
					ctx.JSON(http.StatusConflict, gin.H{"message": err.Error()})
				default:
					log.Printf("confirmation failed [%d]: %s\n", body.IntentID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante la conferma prenotazione."})
				}
				return
			}
			totalEur, err := utils.CentsToEurChecked(*appointment.TotalPriceCents, "totalPriceCents")
			if err != nil {
				log.Printf("appointment amount overflow [%d]: %s\n", appointment.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante la conferma prenotazione."})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"bookingId":       appointment.ID,
				"guests":          appointment.Guests,
				"totalPriceCents": *appointment.TotalPriceCents,
				"totalPriceEur":   totalEur,
				"message":         "Prenotazione confermata.",
			})
		})
	return g
}
