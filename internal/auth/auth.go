package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AuthService struct {
	hmac []byte
	ttl  time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	Sub     string `json:"sub"`
	Role    string `json:"role"` // "student", "teacher" or "admin"
	Name    string `json:"name,omitempty"`
	Year    string `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:     id.ID,
		Role:    id.Role,
		Name:    id.Name,
		Year:    id.Year,
		Section: id.Section,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "examhall",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	})
	if err != nil || !token.Valid {
		return nil, err
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}
