// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/popforge/popforge-go/internal/domain/identity"
)

// GenerateProfileToken creates a JWT for a captured visitor identity so the
// storefront can recognize a returning visitor without re-submitting.
func GenerateProfileToken(profile *identity.Profile, jwtSecret string) (string, error) {
	claims := jwt.MapClaims{
		"email":        profile.Email,
		"sessionToken": profile.SessionToken,
		"popupId":      profile.PopupID,
		"type":         "visitor-profile",
		"iat":          time.Now().UTC().Unix(),
		"exp":          time.Now().UTC().Add(30 * 24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateProfileToken validates a profile token and returns the decoded
// visitor identity.
func ValidateProfileToken(tokenString, jwtSecret string) (*identity.Profile, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	profile := &identity.Profile{}
	if email, ok := claims["email"].(string); ok {
		profile.Email = email
	}
	if sessionToken, ok := claims["sessionToken"].(string); ok {
		profile.SessionToken = sessionToken
	}
	if popupID, ok := claims["popupId"].(string); ok {
		profile.PopupID = popupID
	}
	if profile.Email == "" {
		return nil, errors.New("token missing email claim")
	}
	return profile, nil
}
