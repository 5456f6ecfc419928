package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// ContextUserID holds the buyer id taken from the JWT subject.
	ContextUserID = "user_id"
	// ContextOperator holds the operator name of an authenticated admin call.
	ContextOperator = "operator"
)

// APIAuth validates the Token header against the API key or the hash file.
// The hash file may hold the token itself or its SHA-256 hex.
func APIAuth(apiKey string, hashFilePath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Token")
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"status": false,
					"msg":    "Token is required",
					"obj":    nil,
				})
			}

			if validToken(token, apiKey, hashFilePath) {
				operator := strings.TrimSpace(c.Request().Header.Get("X-Operator"))
				if operator == "" {
					operator = "api"
				}
				c.Set(ContextOperator, operator)
				return next(c)
			}

			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"status": false,
				"msg":    "Invalid token",
				"obj":    nil,
			})
		}
	}
}

func validToken(token, apiKey, hashFilePath string) bool {
	if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
		return true
	}
	if hashFilePath == "" {
		return false
	}
	hashData, err := os.ReadFile(hashFilePath)
	if err != nil {
		return false
	}
	hash := strings.TrimSpace(string(hashData))
	if hash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(hash)) == 1 {
		return true
	}
	h := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(h[:])), []byte(strings.ToLower(hash))) == 1
}

// BuyerAuth requires "Authorization: Bearer <token>" signed with HS256 and
// stores the token subject as the requesting user.
func BuyerAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(key) == 0 {
				return unauthorized(c, "authentication unavailable")
			}
			parts := strings.Fields(c.Request().Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return unauthorized(c, "invalid authorization header")
			}

			token, err := jwt.ParseWithClaims(parts[1], &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return unauthorized(c, "invalid token")
			}

			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok || claims.Subject == "" {
				return unauthorized(c, "invalid token")
			}
			c.Set(ContextUserID, claims.Subject)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"status": false,
		"msg":    msg,
		"obj":    nil,
	})
}

// UserID returns the buyer set by BuyerAuth.
func UserID(c echo.Context) string {
	v, _ := c.Get(ContextUserID).(string)
	return v
}

// Operator returns the operator set by APIAuth.
func Operator(c echo.Context) string {
	v, _ := c.Get(ContextOperator).(string)
	return v
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if c.Response().Status >= http.StatusInternalServerError {
				logger.Error("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
			return nil
		}
	}
}

// CORS configures CORS headers.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Token, Authorization, X-Operator")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
