package service

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	"github.com/smallbiznis/podbudget/internal/auth/domain"
	"github.com/smallbiznis/podbudget/internal/config"
	"go.uber.org/zap"
)

const issuer = "podbudget"

// Verifier checks HS256 session tokens. It never issues sessions for end
// users; Sign exists for service accounts and local tooling.
type Verifier struct {
	log    *zap.Logger
	secret []byte
	now    func() time.Time
}

func NewVerifier(cfg config.Config, log *zap.Logger) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	return &Verifier{
		log:    log.Named("auth.verifier"),
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

func (v *Verifier) Verify(token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}

	var claims domain.Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return domain.Principal{}, domain.ErrTokenExpired
		}
		v.log.Debug("token rejected", zap.Error(err))
		return domain.Principal{}, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	orgID, err := snowflake.ParseString(claims.OrgID)
	if err != nil || orgID == 0 {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	principal := domain.Principal{UserID: userID, OrgID: orgID}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

func (v *Verifier) Sign(userID, orgID snowflake.ID, ttl time.Duration) (string, error) {
	now := v.now().UTC()
	claims := domain.Claims{
		OrgID: orgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
