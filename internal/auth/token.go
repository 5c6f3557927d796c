package auth

import "github.com/golang-jwt/jwt/v5"

// unverifiedSubject reads the sub claim of a JWT without checking its signature.
// The CRM is the party that validates the token; the subject is only used for logs.
func unverifiedSubject(token string) string {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
