package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookieName = "X-Dashboard-Session"

func SessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	}
}

// NewToken returns a random session token.
func NewToken() string {
	return uuid.NewString()
}

// MaxAge converts a session ttl into a cookie Max-Age in seconds. A zero
// ttl gives a browser-session cookie.
func MaxAge(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int(ttl / time.Second)
}
