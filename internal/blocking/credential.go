package blocking

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

// usableToken reports whether cred carries a token worth sending. Opaque
// tokens are accepted as-is; JWTs are rejected once their exp has passed.
// Signatures are not checked here, the archive API does that.
func usableToken(cred *models.Credential, now time.Time) (string, bool) {
	if cred == nil {
		return "", false
	}
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return "", false
	}
	if strings.Count(token, ".") != 2 {
		return token, true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token, true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, true
	}
	if !now.Before(exp.Time) {
		return "", false
	}
	return token, true
}
