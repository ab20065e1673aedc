package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/accounts"
	"github.com/MarkoPoloResearchLab/parking/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	testSigningKey    = "secret-key"
	testAdminName     = "admin"
	testAdminPassword = "admin-pass"
)

type movableClock struct {
	mu         sync.Mutex
	nowUnixUTC int64
}

func (clock *movableClock) Now() int64 {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.nowUnixUTC
}

func (clock *movableClock) Advance(seconds int64) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.nowUnixUTC += seconds
}

type testAPI struct {
	server   *httptest.Server
	clock    *movableClock
	accounts *accounts.Service
	cfg      Config
}

func startTestAPI(test *testing.T) *testAPI {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/parking.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	store := gormstore.New(db)

	// Token expiry is checked against the wall clock, so the service clock starts there.
	clock := &movableClock{nowUnixUTC: time.Now().UTC().Unix()}
	cfg := Config{
		AllowedOrigins:    []string{"http://localhost:8000"},
		SessionSigningKey: testSigningKey,
	}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}

	occupancyService, err := occupancy.NewService(store, clock.Now)
	if err != nil {
		test.Fatalf("occupancy service: %v", err)
	}
	issuer, err := accounts.NewTokenIssuer(cfg.SessionSigningKey, cfg.SessionIssuer)
	if err != nil {
		test.Fatalf("token issuer: %v", err)
	}
	accountService, err := accounts.NewService(store, issuer, clock.Now,
		accounts.WithSessionTTL(cfg.SessionTTL),
		accounts.WithPasswordCost(bcrypt.MinCost),
	)
	if err != nil {
		test.Fatalf("accounts service: %v", err)
	}
	if _, _, err := accountService.EnsureAdmin(context.Background(), testAdminName, "Administrator", testAdminPassword); err != nil {
		test.Fatalf("ensure admin: %v", err)
	}

	handler, validator, err := newHandler(cfg, Dependencies{Occupancy: occupancyService, Accounts: accountService})
	if err != nil {
		test.Fatalf("handler: %v", err)
	}
	server := httptest.NewServer(setupRouter(cfg, handler, validator))
	test.Cleanup(server.Close)
	return &testAPI{server: server, clock: clock, accounts: accountService, cfg: cfg}
}

func (api *testAPI) do(test *testing.T, method string, path string, cookie *http.Cookie, body any) (int, map[string]any, *http.Response) {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, api.server.URL+path, reader)
	if err != nil {
		test.Fatalf("build request: %v", err)
	}
	request.Header.Set(contentTypeHeader, contentTypeJSON)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	response, err := api.server.Client().Do(request)
	if err != nil {
		test.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		test.Fatalf("%s %s: read response: %v", method, path, err)
	}
	decoded := map[string]any{}
	// Middleware rejections may carry an empty or non-JSON body.
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			test.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return response.StatusCode, decoded, response
}

func (api *testAPI) login(test *testing.T, username string, password string) *http.Cookie {
	test.Helper()
	status, body, response := api.do(test, http.MethodPost, "/api/auth/login", nil, map[string]any{
		"username": username,
		"password": password,
	})
	if status != http.StatusOK {
		test.Fatalf("login %s: status %d body %v", username, status, body)
	}
	for _, cookie := range response.Cookies() {
		if cookie.Name == api.cfg.SessionCookieName {
			return &http.Cookie{Name: cookie.Name, Value: cookie.Value}
		}
	}
	test.Fatalf("login %s: session cookie missing", username)
	return nil
}

func (api *testAPI) registerAndLogin(test *testing.T, username string) *http.Cookie {
	test.Helper()
	status, body, _ := api.do(test, http.MethodPost, "/api/auth/register", nil, map[string]any{
		"username":     username,
		"display_name": "Driver " + username,
		"password":     "secret-pass",
	})
	if status != http.StatusCreated {
		test.Fatalf("register %s: status %d body %v", username, status, body)
	}
	return api.login(test, username, "secret-pass")
}

func nestedObject(test *testing.T, body map[string]any, key string) map[string]any {
	test.Helper()
	value, ok := body[key].(map[string]any)
	if !ok {
		test.Fatalf("expected object %q in %v", key, body)
	}
	return value
}

func nestedList(test *testing.T, body map[string]any, key string) []any {
	test.Helper()
	value, ok := body[key].([]any)
	if !ok {
		test.Fatalf("expected list %q in %v", key, body)
	}
	return value
}

func itoa(value int64) string {
	return strconv.FormatInt(value, 10)
}

func errorCode(body map[string]any) string {
	errorBody, _ := body["error"].(map[string]any)
	code, _ := errorBody["code"].(string)
	return code
}

func TestReservationFlowOverHTTP(test *testing.T) {
	api := startTestAPI(test)
	adminCookie := api.login(test, testAdminName, testAdminPassword)
	driverCookie := api.registerAndLogin(test, "driver")

	status, body, _ := api.do(test, http.MethodPost, "/api/admin/lots", adminCookie, map[string]any{
		"name":                 "Central Plaza",
		"price_per_hour_cents": 1000,
		"address":              "1 Main Street",
		"pin_code":             "560001",
		"max_spots":            2,
	})
	if status != http.StatusCreated {
		test.Fatalf("create lot: status %d body %v", status, body)
	}
	lotID := int64(nestedObject(test, body, "lot")["id"].(float64))

	status, body, _ = api.do(test, http.MethodGet, "/api/lots/"+itoa(lotID)+"/spots", driverCookie, nil)
	if status != http.StatusOK {
		test.Fatalf("list spots: status %d body %v", status, body)
	}
	spots := nestedList(test, body, "spots")
	if len(spots) != 2 {
		test.Fatalf("expected 2 spots, got %d", len(spots))
	}
	spotID := int64(spots[0].(map[string]any)["id"].(float64))
	spotPath := "/api/spots/" + itoa(spotID)

	status, body, _ = api.do(test, http.MethodPost, spotPath+"/reservations", driverCookie, map[string]any{
		"metadata": map[string]any{"plate": "KA-01"},
	})
	if status != http.StatusCreated {
		test.Fatalf("reserve: status %d body %v", status, body)
	}
	reservation := nestedObject(test, body, "reservation")
	if reservation["price_per_hour_cents"].(float64) != 1000 {
		test.Fatalf("expected captured price, got %v", reservation)
	}

	status, body, _ = api.do(test, http.MethodPost, spotPath+"/reservations", driverCookie, nil)
	if status != http.StatusConflict {
		test.Fatalf("expected second reservation conflict, got %d %v", status, body)
	}

	status, body, _ = api.do(test, http.MethodPost, spotPath+"/park", driverCookie, nil)
	if status != http.StatusOK || body["already_confirmed"] != false {
		test.Fatalf("park: status %d body %v", status, body)
	}
	status, body, _ = api.do(test, http.MethodPost, spotPath+"/park", driverCookie, nil)
	if status != http.StatusOK || body["already_confirmed"] != true {
		test.Fatalf("second park: status %d body %v", status, body)
	}

	api.clock.Advance(5_400)
	status, body, _ = api.do(test, http.MethodPost, spotPath+"/release", driverCookie, nil)
	if status != http.StatusOK {
		test.Fatalf("release: status %d body %v", status, body)
	}
	released := nestedObject(test, body, "reservation")
	if released["duration_hours"].(float64) != 2 || released["total_cents"].(float64) != 2000 {
		test.Fatalf("expected 2h for 2000 cents, got %v", released)
	}

	status, body, _ = api.do(test, http.MethodGet, "/api/lots/"+itoa(lotID), driverCookie, nil)
	if status != http.StatusOK || nestedObject(test, body, "lot")["spots_filled"].(float64) != 0 {
		test.Fatalf("expected freed lot, got %d %v", status, body)
	}

	status, body, _ = api.do(test, http.MethodGet, "/api/history", driverCookie, nil)
	if status != http.StatusOK || len(nestedList(test, body, "reservations")) != 1 {
		test.Fatalf("history: status %d body %v", status, body)
	}
}

func TestBookingFlowOverHTTP(test *testing.T) {
	api := startTestAPI(test)
	adminCookie := api.login(test, testAdminName, testAdminPassword)
	driverCookie := api.registerAndLogin(test, "walker")

	status, body, _ := api.do(test, http.MethodPost, "/api/admin/lots", adminCookie, map[string]any{
		"name":                 "Harbor",
		"price_per_hour_cents": 400,
		"address":              "9 Dock Road",
		"pin_code":             "400001",
		"max_spots":            1,
	})
	if status != http.StatusCreated {
		test.Fatalf("create lot: status %d body %v", status, body)
	}
	lotPath := "/api/lots/" + itoa(int64(nestedObject(test, body, "lot")["id"].(float64)))

	status, body, _ = api.do(test, http.MethodPost, lotPath+"/bookings", driverCookie, nil)
	if status != http.StatusCreated {
		test.Fatalf("book: status %d body %v", status, body)
	}
	api.clock.Advance(3 * 3_600)
	status, body, _ = api.do(test, http.MethodPost, "/api/bookings/release", driverCookie, nil)
	if status != http.StatusOK || nestedObject(test, body, "booking")["total_cents"].(float64) != 1200 {
		test.Fatalf("release booking: status %d body %v", status, body)
	}
	status, body, _ = api.do(test, http.MethodPost, "/api/bookings/release", driverCookie, nil)
	if status != http.StatusNotFound {
		test.Fatalf("expected missing booking, got %d %v", status, body)
	}
}

func TestAuthorizationOverHTTP(test *testing.T) {
	api := startTestAPI(test)
	driverCookie := api.registerAndLogin(test, "plain")

	testCases := []struct {
		name       string
		method     string
		path       string
		cookie     *http.Cookie
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "missing cookie", method: http.MethodGet, path: "/api/lots", wantStatus: http.StatusUnauthorized},
		{name: "forged cookie", method: http.MethodGet, path: "/api/lots", cookie: &http.Cookie{Name: api.cfg.SessionCookieName, Value: "garbage"}, wantStatus: http.StatusUnauthorized},
		{name: "non admin create", method: http.MethodPost, path: "/api/admin/lots", cookie: driverCookie, body: map[string]any{"name": "x"}, wantStatus: http.StatusForbidden, wantCode: errorCodeForbidden},
		{name: "non admin summary", method: http.MethodGet, path: "/api/admin/summary", cookie: driverCookie, wantStatus: http.StatusForbidden, wantCode: errorCodeForbidden},
		{name: "bad lot id", method: http.MethodGet, path: "/api/lots/abc", cookie: driverCookie, wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidInput},
		{name: "unknown lot", method: http.MethodGet, path: "/api/lots/999", cookie: driverCookie, wantStatus: http.StatusNotFound, wantCode: errorCodeNotFound},
		{name: "bad metadata", method: http.MethodPost, path: "/api/spots/1/reservations", cookie: driverCookie, body: map[string]any{"metadata": []int{1}}, wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidInput},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			status, body, _ := api.do(test, testCase.method, testCase.path, testCase.cookie, testCase.body)
			if status != testCase.wantStatus {
				test.Fatalf("expected %d, got %d %v", testCase.wantStatus, status, body)
			}
			if testCase.wantCode != "" && errorCode(body) != testCase.wantCode {
				test.Fatalf("expected code %s, got %v", testCase.wantCode, body)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(test *testing.T) {
	api := startTestAPI(test)
	status, body, _ := api.do(test, http.MethodPost, "/api/auth/login", nil, map[string]any{
		"username": testAdminName,
		"password": "wrong-pass",
	})
	if status != http.StatusUnauthorized || errorCode(body) != errorCodeUnauthorized {
		test.Fatalf("expected unauthorized, got %d %v", status, body)
	}
	status, body, _ = api.do(test, http.MethodPost, "/api/auth/register", nil, map[string]any{
		"username": testAdminName,
		"password": "another-pass",
	})
	if status != http.StatusConflict {
		test.Fatalf("expected duplicate username conflict, got %d %v", status, body)
	}
}

func TestLogoutRevokesSession(test *testing.T) {
	api := startTestAPI(test)
	cookie := api.registerAndLogin(test, "leaver")

	status, body, _ := api.do(test, http.MethodGet, "/api/session", cookie, nil)
	if status != http.StatusOK || body["username"] != "leaver" {
		test.Fatalf("session: status %d body %v", status, body)
	}
	status, _, _ = api.do(test, http.MethodPost, "/api/auth/logout", cookie, nil)
	if status != http.StatusNoContent {
		test.Fatalf("logout: status %d", status)
	}
	status, body, _ = api.do(test, http.MethodGet, "/api/session", cookie, nil)
	if status != http.StatusUnauthorized {
		test.Fatalf("expected revoked session, got %d %v", status, body)
	}
}

func TestPromotionAppliesToExistingSession(test *testing.T) {
	api := startTestAPI(test)
	adminCookie := api.login(test, testAdminName, testAdminPassword)
	driverCookie := api.registerAndLogin(test, "rising")

	status, body, _ := api.do(test, http.MethodGet, "/api/session", driverCookie, nil)
	if status != http.StatusOK || body["is_admin"] != false {
		test.Fatalf("session: status %d body %v", status, body)
	}
	userID := int64(body["user_id"].(float64))

	status, body, _ = api.do(test, http.MethodPost, "/api/admin/users/"+itoa(userID)+"/promote", adminCookie, nil)
	if status != http.StatusOK || body["already_admin"] != false {
		test.Fatalf("promote: status %d body %v", status, body)
	}
	status, body, _ = api.do(test, http.MethodGet, "/api/admin/users", driverCookie, nil)
	if status != http.StatusOK || len(nestedList(test, body, "users")) != 2 {
		test.Fatalf("expected promoted user to list users, got %d %v", status, body)
	}
}

func TestConfigValidate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{SessionSigningKey: "k"}},
		{name: "missing key", cfg: Config{}, wantErr: true},
		{name: "admin without password", cfg: Config{SessionSigningKey: "k", AdminUsername: "root"}, wantErr: true},
		{name: "password without admin", cfg: Config{SessionSigningKey: "k", AdminPassword: "pw"}, wantErr: true},
		{name: "admin pair", cfg: Config{SessionSigningKey: "k", AdminUsername: "root", AdminPassword: "pw"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			cfg := testCase.cfg
			err := cfg.Validate()
			if (err != nil) != testCase.wantErr {
				test.Fatalf("expected error %v, got %v", testCase.wantErr, err)
			}
			if err == nil && (cfg.ListenAddr != defaultListenAddr || cfg.SessionCookieName != defaultSessionCookie || cfg.SessionTTL != defaultSessionTTL) {
				test.Fatalf("expected defaults, got %+v", cfg)
			}
		})
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()
	origins := ParseAllowedOrigins(" http://a.test , ,http://b.test ")
	if len(origins) != 2 || origins[0] != "http://a.test" || origins[1] != "http://b.test" {
		test.Fatalf("unexpected origins: %v", origins)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected no origins for blank input")
	}
}
