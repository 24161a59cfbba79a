package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marpelink-escrow-server/internal/config"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(cfg *config.Config, extra ...gin.HandlerFunc) *gin.Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := gin.New()
	r.Use(RequestLogger(logger))
	handlers := append([]gin.HandlerFunc{AuthMiddleware(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		address, _ := GetAddressFromContext(c)
		c.String(http.StatusOK, address)
	})
	r.GET("/whoami", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s", JWTRefreshSecret: "r", JWTExpirationMinutes: 5, JWTRefreshExpirationHours: 1}
	account := &models.Account{Address: "0xba7100000000000000000000000000000000000a", Role: models.RoleUser}
	access, _, err := utils.GenerateTokens(account, cfg)
	require.NoError(t, err)
	r := newRouter(cfg)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"garbage":   "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, account.Address, w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRoleAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s", JWTRefreshSecret: "r", JWTExpirationMinutes: 5, JWTRefreshExpirationHours: 1}
	r := newRouter(cfg, RoleAuthMiddleware(models.RoleAdmin))

	user, _, err := utils.GenerateTokens(&models.Account{Address: "0x1", Role: models.RoleUser}, cfg)
	require.NoError(t, err)
	admin, _, err := utils.GenerateTokens(&models.Account{Address: "0x2", Role: models.RoleAdmin}, cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
