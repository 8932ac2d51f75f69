package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of a session token. A token grants access to
// exactly one conversation session.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

func (r *Router) authEnabled() bool {
	return r.cfg.JWTSecret != ""
}

// issueToken signs a session token for id. It returns "" when auth is off.
func (r *Router) issueToken(id string) (string, error) {
	if !r.authEnabled() {
		return "", nil
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(now.Add(r.cfg.JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID: id,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(r.cfg.JWTSecret))
}

func (r *Router) parseToken(tokenString string) (*SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so the token query parameter is
// accepted too.
func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return req.URL.Query().Get("token")
}

// holdsToken reports whether req carries a valid token for session id.
func (r *Router) holdsToken(req *http.Request, id string) bool {
	tokenString := bearerToken(req)
	if tokenString == "" {
		return false
	}
	claims, err := r.parseToken(tokenString)
	return err == nil && claims.SessionID == id
}

// withSessionAuth requires a valid token for the session named in the path.
func (r *Router) withSessionAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.authEnabled() {
			next(w, req)
			return
		}

		tokenString := bearerToken(req)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		claims, err := r.parseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.SessionID != req.PathValue("id") {
			writeError(w, http.StatusForbidden, "token does not grant access to this session")
			return
		}
		next(w, req)
	}
}
