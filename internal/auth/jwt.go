package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for expired, malformed or badly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 15 * time.Minute

// Identity is the caller identity extracted from a bearer token. It feeds
// audit attribution; requests without a token stay anonymous.
type Identity struct {
	UserID    uuid.UUID
	SessionID string
}

// GenerateToken creates a short-lived token carrying the user and session.
func GenerateToken(userID uuid.UUID, sessionID string, secret []byte) (string, int64, error) {
	expirationTime := time.Now().Add(tokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub":        userID.String(),
		"session_id": sessionID,
		"exp":        expirationTime,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expirationTime, nil
}

// ParseToken validates the token and extracts the caller identity.
func ParseToken(tokenString string, secret []byte) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	sessionID, _ := claims["session_id"].(string)

	return &Identity{
		UserID:    userID,
		SessionID: sessionID,
	}, nil
}
