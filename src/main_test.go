package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/utils"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

const adminTestPassword = "correct-horse-battery"

func (s *TestSuite) SetupSuite() {
	hash, err := utils.HashAdminPassword(adminTestPassword)
	if err != nil {
		log.Fatalf("error hashing test password: %s", err.Error())
	}
	os.Setenv("ADMIN_EMAIL", "admin@example.com")
	os.Setenv("ADMIN_PASSWORD_HASH", hash)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %s", err.Error())
	}

	registerValidators()

	loginAttemptsByIP = utils.NewMemoryAttemptStore(cfg.LoginWindow(), cfg.LoginBaseLock())
	loginAttemptsByEmail = utils.NewMemoryAttemptStore(cfg.LoginWindow(), cfg.LoginBaseLock())

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) postJSON(router http.Handler, url string, body map[string]any) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	sbody, _ := json.Marshal(&body)
	req, _ := http.NewRequest("POST", url, strings.NewReader(string(sbody)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestPaymentConfig() {
	router := setupRouter()
	publicRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/payment-config", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	assert.Equal(s.T(), "mock", gjson.Get(sjson, "mode").String())
	providers := gjson.Get(sjson, "providers").Array()
	assert.Len(s.T(), providers, 2)
}

func (s *TestSuite) TestBookingIntentValidation() {
	router := setupRouter()
	publicRoutes(router)

	futureDate := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	valid := map[string]any{
		"date":      futureDate,
		"timeSlot":  "09:00 - 11:30",
		"guests":    2,
		"tourId":    "when-in-rome",
		"firstName": "Mario",
		"lastName":  "Rossi",
		"phone":     "+39 333 1234567",
		"email":     "mario.rossi@example.com",
	}
	override := func(key string, value any) map[string]any {
		body := map[string]any{}
		for k, v := range valid {
			body[k] = v
		}
		body[key] = value
		return body
	}

	cases := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{"malformed date", override("date", "2026/01/01"), "Data non valida. Usa YYYY-MM-DD."},
		{"impossible date", override("date", "2026-02-30"), "Data non valida. Usa YYYY-MM-DD."},
		{"past date", override("date", "2020-01-01"), "Non puoi prenotare nel passato."},
		{"unknown slot", override("timeSlot", "23:00 - 23:30"), "Fascia oraria non valida."},
		{"too many guests", override("guests", 9), "Numero ospiti non valido."},
		{"zero guests", override("guests", 0), "Numero ospiti non valido."},
		{"unknown tour", override("tourId", "grand-tour-of-nowhere"), "Prezzo tour non configurato."},
		{"short name", override("firstName", " M "), "Nome o cognome non valido."},
		{"bad phone", override("phone", "abc"), "Numero di cellulare non valido."},
		{"bad email", override("email", "not-an-email"), "Email non valida."},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			w := s.postJSON(router, "/api/booking-intents", c.body)
			assert.Equal(s.T(), 400, w.Code)
			rbytes, err := io.ReadAll(w.Body)
			assert.Nil(s.T(), err)
			assert.Equal(s.T(), c.message, gjson.Get(string(rbytes), "message").String())
		})
	}
}

func (s *TestSuite) TestBookingIntentSlotFull() {
	router := setupRouter()
	publicRoutes(router)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT count\(\*\) FROM "appointments"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.Mock.ExpectQuery(`SELECT count\(\*\) FROM "booking_intents"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.Mock.ExpectRollback()

	futureDate := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	w := s.postJSON(router, "/api/booking-intents", map[string]any{
		"date":      futureDate,
		"timeSlot":  "09:00 - 11:30",
		"guests":    2,
		"tourId":    "when-in-rome",
		"firstName": "Mario",
		"lastName":  "Rossi",
		"phone":     "+39 333 1234567",
		"email":     "mario.rossi@example.com",
	})

	assert.Equal(s.T(), 409, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "Fascia oraria esaurita.", gjson.Get(string(rbytes), "message").String())
}

func (s *TestSuite) TestConfirmBookingGuards() {
	router := setupRouter()
	publicRoutes(router)

	s.Run("missing intent id", func() {
		w := s.postJSON(router, "/api/bookings/confirm", map[string]any{
			"paymentProvider": "mock",
		})
		assert.Equal(s.T(), 400, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "Intent ID mancante.", gjson.Get(string(rbytes), "message").String())
	})

	s.Run("unsupported provider", func() {
		w := s.postJSON(router, "/api/bookings/confirm", map[string]any{
			"intentId":        42,
			"paymentProvider": "barter",
		})
		assert.Equal(s.T(), 400, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "Metodo di pagamento non supportato per la modalita corrente.", gjson.Get(string(rbytes), "message").String())
	})

	s.Run("unknown intent", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT .* FROM "booking_intents".*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		s.Mock.ExpectRollback()

		w := s.postJSON(router, "/api/bookings/confirm", map[string]any{
			"intentId":        42,
			"paymentProvider": "mock",
		})
		assert.Equal(s.T(), 404, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "Prenotazione buffer non trovata.", gjson.Get(string(rbytes), "message").String())
	})
}

func (s *TestSuite) TestRangeAvailabilityValidation() {
	router := setupRouter()
	publicRoutes(router)

	cases := []struct {
		name    string
		query   string
		message string
	}{
		{"missing params", "", "Parametri non validi. Usa from_date e to_date in formato YYYY-MM-DD."},
		{"malformed dates", "?from_date=01-01-2026&to_date=02-01-2026", "Parametri non validi. Usa from_date e to_date in formato YYYY-MM-DD."},
		{"inverted range", "?from_date=2026-02-01&to_date=2026-01-01", "Intervallo non valido: from_date deve essere precedente a to_date."},
		{"oversized range", "?from_date=2026-01-01&to_date=2027-06-01", "Intervallo troppo grande. Massimo 366 giorni."},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/availability/range"+c.query, nil)
			router.ServeHTTP(w, req)
			assert.Equal(s.T(), 400, w.Code)
			rbytes, err := io.ReadAll(w.Body)
			assert.Nil(s.T(), err)
			assert.Equal(s.T(), c.message, gjson.Get(string(rbytes), "message").String())
		})
	}
}

func (s *TestSuite) TestMonthAvailabilityValidation() {
	router := setupRouter()
	publicRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/availability?month=2026-13", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "Parametro month non valido. Usa YYYY-MM.", gjson.Get(string(rbytes), "message").String())
}

func (s *TestSuite) TestAdminLoginFlow() {
	router := setupRouter()
	publicRoutes(router)
	adminRoutes(router)

	s.Run("rejects bad credentials", func() {
		w := s.postJSON(router, "/api/admin/login", map[string]any{
			"email":    "admin@example.com",
			"password": "wrong",
		})
		assert.Equal(s.T(), 401, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "Credenziali non valide.", gjson.Get(string(rbytes), "message").String())
	})

	s.Run("requires email and password", func() {
		w := s.postJSON(router, "/api/admin/login", map[string]any{})
		assert.Equal(s.T(), 400, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "Email e password sono obbligatori.", gjson.Get(string(rbytes), "message").String())
	})

	var token string
	s.Run("issues a session on valid credentials", func() {
		w := s.postJSON(router, "/api/admin/login", map[string]any{
			"email":    "admin@example.com",
			"password": adminTestPassword,
		})
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		sjson := string(rbytes)
		token = gjson.Get(sjson, "token").String()
		assert.Len(s.T(), token, 64)
		assert.Equal(s.T(), "admin@example.com", gjson.Get(sjson, "email").String())
		assert.NotEmpty(s.T(), gjson.Get(sjson, "expiresAt").String())
	})

	s.Run("me returns the session identity", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/admin/me", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "admin@example.com", gjson.Get(string(rbytes), "email").String())
	})

	s.Run("rejects requests without a token", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/admin/me", nil)
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 401, w.Code)
	})

	s.Run("logout invalidates the session", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/admin/logout", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/api/admin/me", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestAdminLoginLockout() {
	router := setupRouter()
	publicRoutes(router)

	attempts := config.Get().LoginMaxAttemptsPerEmail()
	body := map[string]any{
		"email":    "locked-out@example.com",
		"password": "wrong",
	}
	for i := 0; i < attempts; i++ {
		w := s.postJSON(router, "/api/admin/login", body)
		assert.Equal(s.T(), 401, w.Code)
		if i == attempts-1 {
			assert.NotEmpty(s.T(), w.Header().Get("Retry-After"))
		}
	}

	w := s.postJSON(router, "/api/admin/login", body)
	assert.Equal(s.T(), 429, w.Code)
	assert.NotEmpty(s.T(), w.Header().Get("Retry-After"))
	rbytes, _ := io.ReadAll(w.Body)
	message := gjson.Get(string(rbytes), "message").String()
	assert.Contains(s.T(), message, "Troppi tentativi di accesso.")
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
