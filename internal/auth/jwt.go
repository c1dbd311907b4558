package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID int
	Role   string
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
}

func (t Tokens) Generate(userID int, role string) (string, error) {
	return GenerateToken(t.Secret, userID, role, t.TTL)
}

func GenerateToken(secret []byte, userID int, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func ParseToken(secret []byte, tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	data, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("unexpected claims type")
	}
	uidFloat, ok := data["user_id"].(float64)
	if !ok {
		return Claims{}, fmt.Errorf("token has no user_id")
	}
	role, _ := data["role"].(string)

	return Claims{UserID: int(uidFloat), Role: role}, nil
}
