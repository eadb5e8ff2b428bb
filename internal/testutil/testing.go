package testutil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/middlewares"
	"account-portal/internal/mocks"
	"account-portal/internal/models"

	"go.uber.org/mock/gomock"
)

// TestContext holds everything needed for testing
type TestContext struct {
	AppContext     *middlewares.AppContext
	Request        *http.Request
	Response       *httptest.ResponseRecorder
	MockController *gomock.Controller
	MockSession    *mocks.MockSessionProvider
	MockFlow       *mocks.MockLoginFlow
	MockRotator    *mocks.MockCredentialRotator
	LogHandler     *TestLogHandler
}

// NewTestConfig returns a config carrying the defaults handlers rely on.
func NewTestConfig() *config.Config {
	return &config.Config{
		Auth:     config.DefaultAuthConfig,
		Sessions: config.DefaultSessionConfig,
	}
}

// NewTestContextWithURL creates a complete test setup with sensible defaults
func NewTestContextWithURL(t *testing.T, method, target string) *TestContext {
	logHandler := NewTestLogHandler()
	logger := slog.New(logHandler)

	ctrl := gomock.NewController(t)

	mockSession := mocks.NewMockSessionProvider(ctrl)
	mockFlow := mocks.NewMockLoginFlow(ctrl)
	mockRotator := mocks.NewMockCredentialRotator(ctrl)

	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()

	appCtx := &middlewares.AppContext{
		Context:  req.Context(),
		Config:   NewTestConfig(),
		Logger:   logger,
		Sessions: mockSession,
		Auth:     mockFlow,
		Rotator:  mockRotator,
		Request:  req,
		Response: rr,
	}

	return &TestContext{
		AppContext:     appCtx,
		Request:        req,
		Response:       rr,
		MockController: ctrl,
		MockSession:    mockSession,
		MockFlow:       mockFlow,
		MockRotator:    mockRotator,
		LogHandler:     logHandler,
	}
}

// NewTestSession returns a session valid for an hour.
func NewTestSession() *models.Session {
	now := time.Now().Truncate(time.Second)
	return &models.Session{
		ID:          "sess-1",
		SubjectID:   "user-1",
		Issuer:      "https://id.example.com",
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
		DisplayName: "Test User",
	}
}

// Finish should be called at the end of tests to clean up mocks
func (tc *TestContext) Finish() {
	if tc.MockController != nil {
		tc.MockController.Finish()
	}
}

func (tc *TestContext) AssertLogContains(t *testing.T, level slog.Level, message string) {
	t.Helper()
	if !tc.LogHandler.ContainsMessage(level, message) {
		t.Errorf("Expected to find log entry with level %v containing message: %s", level, message)
	}
}

func (tc *TestContext) AssertLogCount(t *testing.T, level slog.Level, expectedCount int) {
	t.Helper()
	count := tc.LogHandler.CountByLevel(level)
	if count != expectedCount {
		t.Errorf("Expected %d log entries at level %v, got %d", expectedCount, level, count)
	}
}

// AssertLogsExclude fails if any log message or attribute contains secret.
func (tc *TestContext) AssertLogsExclude(t *testing.T, secret string) {
	t.Helper()
	if tc.LogHandler.Contains(secret) {
		t.Errorf("Expected logs not to contain %q", secret)
	}
}

func (tc *TestContext) GetLogRecords() []TestLogRecord {
	return tc.LogHandler.GetRecords()
}

// CallHandler executes a handler with the test context
func (tc *TestContext) CallHandler(handler middlewares.AppHandler) {
	handler(tc.AppContext)
}

// AssertStatus checks the HTTP status code
func (tc *TestContext) AssertStatus(t *testing.T, expectedStatus int) {
	t.Helper()
	if tc.Response.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, tc.Response.Code)
	}
}

// AssertContentType checks the content type header
func (tc *TestContext) AssertContentType(t *testing.T, expectedType string) {
	t.Helper()
	if ct := tc.Response.Header().Get("Content-Type"); ct != expectedType {
		t.Errorf("Expected content type %s, got %s", expectedType, ct)
	}
}

// AssertLocation checks the redirect target
func (tc *TestContext) AssertLocation(t *testing.T, expected string) {
	t.Helper()
	if location := tc.Response.Header().Get("Location"); location != expected {
		t.Errorf("Expected Location %q, got %q", expected, location)
	}
}

// GetLocation parses the redirect target
func (tc *TestContext) GetLocation(t *testing.T) *url.URL {
	t.Helper()
	location, err := url.Parse(tc.Response.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Could not parse Location header: %v", err)
	}
	return location
}

// GetJSONResponse parses the response body as JSON
func (tc *TestContext) GetJSONResponse(t *testing.T) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(tc.Response.Body.Bytes(), &response); err != nil {
		t.Fatalf("Could not parse JSON response: %v", err)
	}
	return response
}

func (tc *TestContext) AssertJSONBool(t *testing.T, field string, expected bool) {
	t.Helper()
	response := tc.GetJSONResponse(t)
	actual, exists := response[field]

	if !exists {
		t.Errorf("Field %s not found in response", field)
		return
	}

	actualBool, ok := actual.(bool)
	if !ok {
		t.Errorf("Expected %s to be a boolean, got %T", field, actual)
		return
	}

	if actualBool != expected {
		t.Errorf("Expected %s to be %v, got %v", field, expected, actualBool)
	}
}

// AssertJSONString checks a specific string field in a JSON response
func (tc *TestContext) AssertJSONString(t *testing.T, field string, expected string) {
	t.Helper()
	response := tc.GetJSONResponse(t)
	actual, exists := response[field]

	if !exists {
		t.Errorf("Field %s not found in response", field)
		return
	}

	actualString, ok := actual.(string)
	if !ok {
		t.Errorf("Expected %s to be a string, got %T", field, actual)
		return
	}

	if actualString != expected {
		t.Errorf("Expected %s to be %q, got %q", field, expected, actualString)
	}
}

// AssertJSONObject validates an object field with expected key-value pairs
func (tc *TestContext) AssertJSONObject(t *testing.T, field string, expectedFields map[string]interface{}) {
	t.Helper()
	response := tc.GetJSONResponse(t)
	actual, exists := response[field]

	if !exists {
		t.Errorf("Field %s not found in response", field)
		return
	}

	actualObj, ok := actual.(map[string]interface{})
	if !ok {
		t.Errorf("Expected %s to be an object, got %T", field, actual)
		return
	}

	for key, expectedValue := range expectedFields {
		if actualValue, keyExists := actualObj[key]; !keyExists {
			t.Errorf("Expected field %s.%s to exist", field, key)
		} else if actualValue != expectedValue {
			t.Errorf("Expected %s.%s to be %v, got %v", field, key, expectedValue, actualValue)
		}
	}
}

// WithConfig allows you to override the default config for specific tests
func (tc *TestContext) WithConfig(cfg *config.Config) *TestContext {
	tc.AppContext.Config = cfg
	return tc
}

// WithSession marks the request as authenticated, as LoadSession would.
func (tc *TestContext) WithSession(session *models.Session) *TestContext {
	tc.AppContext.Session = session
	return tc
}

// Helper to add query parameters to the request
func (tc *TestContext) WithQueryParam(key, value string) *TestContext {
	q := tc.Request.URL.Query()
	q.Add(key, value)
	tc.Request.URL.RawQuery = q.Encode()
	return tc
}

// Helper to add headers
func (tc *TestContext) WithHeader(key, value string) *TestContext {
	tc.Request.Header.Set(key, value)
	return tc
}

// WithRequest allows you to set a custom request (useful for tests that don't use URL constructor)
func (tc *TestContext) WithRequest(req *http.Request) *TestContext {
	tc.Request = req
	tc.AppContext.Request = req
	tc.AppContext.Context = req.Context()
	return tc
}

// ExpectSessionWrite expects the session cookie to be written for session.
func (tc *TestContext) ExpectSessionWrite(session *models.Session, err error) *gomock.Call {
	return tc.MockSession.EXPECT().Write(gomock.Any(), session).Return(err)
}

// ExpectSessionRevoke expects the session cookie to be cleared.
func (tc *TestContext) ExpectSessionRevoke() *gomock.Call {
	return tc.MockSession.EXPECT().Revoke(gomock.Any())
}
