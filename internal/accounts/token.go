package accounts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

const (
	roleAdmin = "admin"
	roleUser  = "user"
)

// TokenIssuer signs session tokens readable by sessionvalidator.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
}

// NewTokenIssuer validates the signing configuration.
func NewTokenIssuer(signingKey string, issuer string) (*TokenIssuer, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidServiceConfig)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidServiceConfig)
	}
	return &TokenIssuer{signingKey: []byte(signingKey), issuer: issuer}, nil
}

// Issue signs an HS256 token for the session. The session id travels as jti.
func (issuer *TokenIssuer) Issue(user User, session Session, issuedUnixUTC int64) (string, error) {
	roles := []string{roleUser}
	if user.IsAdmin {
		roles = append(roles, roleAdmin)
	}
	claims := &sessionvalidator.Claims{
		UserID:          strconv.FormatInt(user.ID.Int64(), 10),
		UserDisplayName: user.DisplayName,
		UserRoles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    issuer.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(time.Unix(issuedUnixUTC, 0).UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Unix(session.ExpiresUnixUTC, 0).UTC()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
