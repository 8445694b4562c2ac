package authjwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

func generateTestKeyPair(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return privateKey, string(publicPEM)
}

func signTestToken(t *testing.T, key *ecdsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newTestApp(publicKey string, allowAnonymous bool) *fiber.App {
	app := fiber.New()
	app.Use(New(Config{
		PublicKey:      publicKey,
		ClaimKey:       "claim",
		UserCtxName:    types.UserCtxName,
		AllowAnonymous: allowAnonymous,
	}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		user := c.Locals(types.UserCtxName).(types.UserContext)
		return c.JSON(fiber.Map{
			"user_id": user.UserID,
			"logged":  user.Logged(),
			"admin":   user.Admin,
		})
	})
	return app
}

func TestAuthJWT_ValidToken(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)
	app := newTestApp(publicPEM, false)

	tokenString := signTestToken(t, privateKey, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"claim": map[string]interface{}{
			"uid":      float64(42),
			"username": "jsmith",
			"admin":    false,
		},
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(types.HeaderAuthorization, types.BearerPrefix+tokenString)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthJWT_MissingTokenRejected(t *testing.T) {
	_, publicPEM := generateTestKeyPair(t)
	app := newTestApp(publicPEM, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthJWT_MissingTokenAnonymousPassthrough(t *testing.T) {
	_, publicPEM := generateTestKeyPair(t)
	app := newTestApp(publicPEM, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthJWT_ExpiredToken(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)
	app := newTestApp(publicPEM, true)

	tokenString := signTestToken(t, privateKey, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
		"claim": map[string]interface{}{
			"uid": float64(42),
		},
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(types.HeaderAuthorization, types.BearerPrefix+tokenString)

	resp, err := app.Test(req)
	require.NoError(t, err)
	// A bad token is rejected even when anonymous access is allowed.
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthJWT_WrongSigningMethod(t *testing.T) {
	_, publicPEM := generateTestKeyPair(t)
	app := newTestApp(publicPEM, false)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"claim": map[string]interface{}{"uid": float64(42)},
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(types.HeaderAuthorization, types.BearerPrefix+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestValidateToken_MapsClaims(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)

	block, _ := pem.Decode([]byte(publicPEM))
	require.NotNil(t, block)
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	tokenString := signTestToken(t, privateKey, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"claim": map[string]interface{}{
			"uid":      float64(7),
			"username": "admin",
			"admin":    true,
		},
	})

	userCtx, err := ValidateToken(tokenString, parsed, "claim")
	require.NoError(t, err)
	assert.Equal(t, int64(7), userCtx.UserID)
	assert.Equal(t, "admin", userCtx.Username)
	assert.True(t, userCtx.Admin)
	assert.True(t, userCtx.Logged())
}

func TestValidateToken_MissingUID(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)

	block, _ := pem.Decode([]byte(publicPEM))
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	tokenString := signTestToken(t, privateKey, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"claim": map[string]interface{}{"username": "ghost"},
	})

	_, err = ValidateToken(tokenString, parsed, "claim")
	assert.Error(t, err)
}
