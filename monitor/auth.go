package monitor

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// authenticator gates requests on an HS256 bearer token. With no
// secret configured every request passes.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) *authenticator {
	if secret == "" {
		return &authenticator{}
	}
	return &authenticator{secret: []byte(secret)}
}

func (a *authenticator) require(next http.HandlerFunc) http.HandlerFunc {
	if a.secret == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := a.verify(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// verify checks signature and expiry. The signing method is pinned to
// HMAC so a forged token cannot downgrade to alg "none".
func (a *authenticator) verify(tokenString string) error {
	_, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err
}

// bearerToken pulls the token from the Authorization header, falling
// back to an access_token query parameter for browser WebSocket
// clients that cannot set headers.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
