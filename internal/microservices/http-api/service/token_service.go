package service

import (
	"errors"
	"fmt"
	"time"

	"cinecircle/internal/shared"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService validates the HMAC JWTs issued by the account service.
// Both the HTTP middleware and the real-time handshakes use it.
type TokenService struct {
	jwtSecret string
}

func NewTokenService(jwtSecret string) *TokenService {
	return &TokenService{jwtSecret: jwtSecret}
}

func (a *TokenService) ValidateToken(tokenString string) (*shared.AuthClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: user_id claim is not a string", ErrInvalidToken)
	}

	// username is optional for tokens minted by older clients
	username, _ := claims["username"].(string)

	return &shared.AuthClaims{UserID: userID, UserName: username}, nil
}

// IssueToken signs a token carrying the same claims ValidateToken reads.
func (a *TokenService) IssueToken(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(a.jwtSecret))
}
