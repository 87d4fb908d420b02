// Package auth mints and checks the HS256 access assertions handed out after
// a successful login.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the registered claim set plus the user's promotion. The subject
// is the decimal user id.
type Claims struct {
	jwt.RegisteredClaims
	Promotion          models.Promotion          `json:"promotion"`
	PromotionAuthority models.PromotionAuthority `json:"promotion_authority"`
}

// UserID returns the user id carried in the subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

func GenerateToken(u *models.User, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Promotion:          u.Promotion,
		PromotionAuthority: u.PromotionAuthority,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString. Expired tokens yield
// common.ErrTokenExpired, every other failure common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken is ParseToken reduced to the user id.
func GetUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
