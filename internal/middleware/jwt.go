package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "fmt"
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-booking/internal/logging"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the subject and role claims in the request context under
// "user_id" and "role", both as strings. The request logger is enriched
// with the user ID so every log line of the request carries it.
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            // sub is a string for tokens we issue; numeric subjects from
            // older issuers are accepted in their decimal form.
            var sub string
            switch v := claims["sub"].(type) {
            case string:
                sub = v
            case float64:
                sub = fmt.Sprintf("%.0f", v)
            }
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            role, _ := claims["role"].(string)

            c.Set(ctxUserID, sub)
            c.Set(ctxRole, role)
            ctx := c.Request().Context()
            ctx = logging.ToContext(ctx, logging.FromContext(ctx).WithField("user_id", sub))
            c.SetRequest(c.Request().WithContext(ctx))
            return next(c)
        }
    }
}
