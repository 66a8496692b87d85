package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Refresh this long before the token actually expires.
const expirySkew = 30 * time.Second

// tokenExpiry reads the exp claim without verifying the signature. The
// identity provider verifies tokens, this side only needs to know when to
// refresh.
func tokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (s *Session) expired(now time.Time) bool {
	deadline, ok := tokenExpiry(s.AccessToken)
	if !ok {
		if s.ExpiresAt <= 0 {
			return false
		}
		deadline = time.Unix(s.ExpiresAt, 0)
	}
	return !now.Add(expirySkew).Before(deadline)
}
