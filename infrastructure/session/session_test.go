package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTokenIsUUID(t *testing.T) {
	a, b := NewToken(), NewToken()
	if a == b {
		t.Fatalf("tokens must differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("token is not a uuid: %v", err)
	}
}

func TestSessionCookie(t *testing.T) {
	c := SessionCookie("abc", MaxAge(12*time.Hour))
	if c.Name != CookieName || !c.HttpOnly || c.MaxAge != 43200 || c.Path != "/" {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if MaxAge(0) != 0 {
		t.Fatalf("zero ttl must give session cookie")
	}
}
