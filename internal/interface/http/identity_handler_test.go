package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stackbound/identity-api/config"
	"github.com/stackbound/identity-api/internal/container"
	"github.com/stackbound/identity-api/internal/infrastructure/filestore"
	"github.com/stackbound/identity-api/internal/router"
	"github.com/stackbound/identity-api/pkg/helpers"
	"github.com/stackbound/identity-api/pkg/validation"
)

type envelope struct {
	Status  int               `json:"status"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

type userPayload struct {
	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"user"`
	Token string `json:"token"`
}

// newTestServer wires the real router, service and a temp-dir file store.
// Redis is absent, so rate limiting is a no-op pass-through.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	validation.Init()

	cfg := &config.Config{
		AppName:    "identity-api-test",
		Env:        "test",
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  "test-secret",
		JWTTTL:     time.Hour,
		DataDir:    t.TempDir(),
	}

	store := filestore.New(cfg.DataDir)
	require.NoError(t, store.Init(context.Background()))

	container.SetConfig(cfg)
	container.SetLogger(nil)
	container.SetRepo(store)
	container.SetRedis(nil)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL))

	engine := gin.New()
	reg := router.NewRegistry(engine)
	router.InitModules(reg)
	reg.RegisterAll()
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func register(t *testing.T, engine *gin.Engine, email, password, name string) (userPayload, envelope) {
	t.Helper()
	w, env := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": password, "name": name,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", env.Message)
	var payload userPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload, env
}

func TestRegisterLoginFlow(t *testing.T) {
	engine := newTestServer(t)

	payload, env := register(t, engine, "test@example.com", "testpassword123", "Test User")
	assert.True(t, env.Success)
	assert.NotEmpty(t, payload.User.ID)
	assert.Equal(t, "test@example.com", payload.User.Email)
	assert.NotEmpty(t, payload.Token)

	w, loginEnv := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "test@example.com", "password": "testpassword123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var loginPayload userPayload
	require.NoError(t, json.Unmarshal(loginEnv.Data, &loginPayload))
	assert.Equal(t, payload.User.ID, loginPayload.User.ID)
	assert.NotEmpty(t, loginPayload.Token)
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	engine := newTestServer(t)

	register(t, engine, "a@x.com", "pw123456", "A")

	w, env := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "A@x.com", "password": "pw123456", "name": "B",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
}

func TestRegister_ValidationFailed(t *testing.T) {
	engine := newTestServer(t)

	for name, body := range map[string]gin.H{
		"missing email":    {"password": "pw123456", "name": "A"},
		"bad email":        {"email": "not-an-email", "password": "pw123456", "name": "A"},
		"missing password": {"email": "a@x.com", "name": "A"},
		"short password":   {"email": "a@x.com", "password": "short", "name": "A"},
		"missing name":     {"email": "a@x.com", "password": "pw123456"},
	} {
		w, env := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.NotEmpty(t, env.Error, name)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	engine := newTestServer(t)

	register(t, engine, "a@x.com", "pw123456", "A")

	// Wrong password and unknown email produce the same external failure.
	wWrong, envWrong := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "a@x.com", "password": "wrong-password",
	})
	wUnknown, envUnknown := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "nobody@x.com", "password": "pw123456",
	})

	assert.Equal(t, http.StatusUnauthorized, wWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, wUnknown.Code)
	assert.Equal(t, envWrong.Message, envUnknown.Message)
}

func TestProtectedRoutes_MissingOrInvalidToken(t *testing.T) {
	engine := newTestServer(t)

	w, env := doJSON(t, engine, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "access token required", env.Message)

	w, env = doJSON(t, engine, http.MethodGet, "/api/auth/profile", "garbage.token.here", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid or expired token", env.Message)
}

func TestExpiredTokenRejected(t *testing.T) {
	engine := newTestServer(t)

	payload, _ := register(t, engine, "a@x.com", "pw123456", "A")

	expired, _, err := helpers.NewJWTManager("test-secret", -time.Minute).Generate(payload.User.ID, "a@x.com")
	require.NoError(t, err)

	w, env := doJSON(t, engine, http.MethodGet, "/api/auth/profile", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid or expired token", env.Message)
}

func TestProfileLifecycle(t *testing.T) {
	engine := newTestServer(t)

	payload, _ := register(t, engine, "a@x.com", "pw123456", "A")
	token := payload.Token

	// Login with a case variant of the email.
	w, _ := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "A@X.COM", "password": "pw123456",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Update the display name with the registration token.
	w, env := doJSON(t, engine, http.MethodPut, "/api/auth/profile", token, gin.H{"name": "B"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated userPayload
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "B", updated.User.Name)
	assert.Equal(t, payload.User.CreatedAt, updated.User.CreatedAt)
	assert.True(t, updated.User.UpdatedAt.After(payload.User.UpdatedAt) || updated.User.UpdatedAt.Equal(payload.User.UpdatedAt))

	// Verify still reports the claims embedded at issuance.
	w, env = doJSON(t, engine, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var verify struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verify))
	assert.Equal(t, payload.User.ID, verify.UserID)
	assert.Equal(t, "a@x.com", verify.Email)

	// Fetch reflects the update.
	w, env = doJSON(t, engine, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched userPayload
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, "B", fetched.User.Name)
}

func TestResponsesNeverCarryPasswordHash(t *testing.T) {
	engine := newTestServer(t)

	payload, _ := register(t, engine, "a@x.com", "pw123456", "A")

	for _, probe := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}},
		{http.MethodGet, "/api/auth/profile", nil},
		{http.MethodPut, "/api/auth/profile", gin.H{"name": "B"}},
		{http.MethodGet, "/api/auth/verify", nil},
	} {
		req := httptest.NewRequest(probe.method, probe.path, jsonBody(t, probe.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+payload.Token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, probe.path)
		assert.NotContains(t, w.Body.String(), "password", probe.path)
		assert.NotContains(t, w.Body.String(), "$2a$", probe.path)
	}
}

func TestLogoutAndHealth(t *testing.T) {
	engine := newTestServer(t)

	payload, _ := register(t, engine, "a@x.com", "pw123456", "A")

	w, env := doJSON(t, engine, http.MethodPost, "/api/auth/logout", payload.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	// Tokens are not revocable: the token still works after logout.
	w, _ = doJSON(t, engine, http.MethodGet, "/api/auth/verify", payload.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, engine, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func jsonBody(t *testing.T, body any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return &buf
}
