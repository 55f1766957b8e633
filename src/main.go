package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"tbs/src/boot"
	"tbs/src/config"
	"tbs/src/middlewares"
	"tbs/src/utils"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	apiPrefix string = "/api"
)

// In-memory security state. A process restart wipes all of it, which is
// the intended behavior for admin sessions.
var (
	adminSessions        utils.SessionStore = utils.NewMemorySessionStore()
	loginAttemptsByIP    utils.AttemptStore
	loginAttemptsByEmail utils.AttemptStore
)

var dateKeyValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := utils.ParseDateKey(value)
	return err == nil
}

var bookingDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	date, err := utils.ParseDateKey(value)
	if err != nil {
		// Shape errors belong to the datekey validator.
		return true
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !date.Before(today)
}

var timeSlotValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return config.Get().HasSlot(value)
}

var tourPriceValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, found := utils.ResolveTourPriceCents(utils.SanitizeCustomerField(value, 40))
	return found
}

var personNameValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return len([]rune(utils.SanitizeCustomerField(value, 80))) >= 2
}

var phoneShapeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return utils.IsValidCustomerPhone(utils.SanitizeCustomerField(value, 40))
}

var emailShapeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return utils.IsValidCustomerEmail(strings.ToLower(utils.SanitizeCustomerField(value, 160)))
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("datekey", dateKeyValidatorFunc)
		v.RegisterValidation("bookingdate", bookingDateValidatorFunc)
		v.RegisterValidation("timeslot", timeSlotValidatorFunc)
		v.RegisterValidation("tourprice", tourPriceValidatorFunc)
		v.RegisterValidation("personname", personNameValidatorFunc)
		v.RegisterValidation("phoneshape", phoneShapeValidatorFunc)
		v.RegisterValidation("emailshape", emailShapeValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func corsConfig(cfg *config.App) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "DELETE")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	origins := strings.Split(cfg.FrontendOrigin, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	if len(origins) == 1 && origins[0] == "*" {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	api := g.Group(apiPrefix)
	availabilityHandlers(api)
	bookingHandlers(api)
	api.POST("/admin/login", adminLoginHandler)
	return api
}

func adminRoutes(g *gin.Engine) *gin.RouterGroup {
	api := g.Group(apiPrefix)
	api.Use(middlewares.RequireAdmin(adminSessions))
	adminHandlers(api)
	return api
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %s", err.Error())
	}
	if !cfg.AdminAuthConfigured() {
		log.Fatalln("Config admin mancante: imposta ADMIN_EMAIL e ADMIN_PASSWORD_HASH.")
	}
	if cfg.AdminPassword != "" && cfg.AdminPasswordHash == "" {
		log.Println("Admin auth: stai usando ADMIN_PASSWORD in chiaro. Usa ADMIN_PASSWORD_HASH.")
	}

	loginAttemptsByIP = utils.NewMemoryAttemptStore(cfg.LoginWindow(), cfg.LoginBaseLock())
	loginAttemptsByEmail = utils.NewMemoryAttemptStore(cfg.LoginWindow(), cfg.LoginBaseLock())

	boot.InitDb()
	defer boot.StopScheduler()
	boot.InitScheduler(func() {
		now := time.Now()
		adminSessions.Purge(now)
		loginAttemptsByIP.Cleanup(now)
		loginAttemptsByEmail.Cleanup(now)
	})

	router := setupRouter()
	router.Use(cors.New(corsConfig(cfg)))
	registerValidators()

	publicRoutes(router)
	adminRoutes(router)

	log.Printf("Booking API attiva su http://localhost:%d\n", cfg.Port)
	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("error starting server: %s", err.Error())
	}
}
