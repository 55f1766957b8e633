package main

import (
	"log"
	"net/http"
	"tbs/src/types"
	"tbs/src/utils"
	"time"

	"github.com/gin-gonic/gin"
)

const maxRangeDays = 366

func availabilityHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/availability", func(ctx *gin.Context) {
			monthKey := ctx.Query("month")
			if !utils.IsValidMonthKey(monthKey) {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Parametro month non valido. Usa YYYY-MM."})
				return
			}
			days, err := utils.MonthAvailability(monthKey)
			if err != nil {
				log.Printf("month availability failed [%s]: %s\n", monthKey, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante il calcolo disponibilita."})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"month": monthKey, "days": days})
		}).
		GET("/availability/range", func(ctx *gin.Context) {
			var query types.RangeAvailabilityQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Parametri non validi. Usa from_date e to_date in formato YYYY-MM-DD."})
				return
			}
			from, errFrom := utils.ParseDateKey(query.FromDate)
			to, errTo := utils.ParseDateKey(query.ToDate)
			if errFrom != nil || errTo != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Parametri non validi. Usa from_date e to_date in formato YYYY-MM-DD."})
				return
			}
			if !from.Before(to) {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Intervallo non valido: from_date deve essere precedente a to_date."})
				return
			}
			if to.Sub(from) > maxRangeDays*24*time.Hour {
				ctx.JSON(http.StatusBadRequest, gin.H{"message": "Intervallo troppo grande. Massimo 366 giorni."})
				return
			}
			availability, err := utils.RangeAvailability(from, to)
			if err != nil {
				log.Printf("range availability failed [%s..%s]: %s\n", query.FromDate, query.ToDate, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Errore durante il calcolo disponibilita range."})
				return
			}
			ctx.JSON(http.StatusOK, availability)
		})
	return g
}
