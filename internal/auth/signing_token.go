package auth

import (
	"errors"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSigningToken = errors.New("invalid signing token")

type SigningClaims struct {
	SignatureID string `json:"sid"`
	DocumentID  string `json:"did"`
	SignerEmail string `json:"email"`
	Type        string `json:"typ"`
	jwt.RegisteredClaims
}

// SigningTokenCodec issues the bearer tokens carried in signing links.
// The JWT expiry is the business expiry plus grace, so a link that expired on
// the signature row still decodes and can be told apart from a forged one.
type SigningTokenCodec struct {
	secret []byte
	grace  time.Duration
	now    func() time.Time
}

func NewSigningTokenCodec(cfg config.SigningConfig) *SigningTokenCodec {
	return &SigningTokenCodec{
		secret: []byte(cfg.TokenSecret),
		grace:  cfg.TokenGrace,
		now:    time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (c *SigningTokenCodec) WithClock(now func() time.Time) *SigningTokenCodec {
	c.now = now
	return c
}

func (c *SigningTokenCodec) IssueSigningToken(signatureID, documentID, signerEmail string, expiresAt time.Time) (string, error) {
	claims := SigningClaims{
		SignatureID: signatureID,
		DocumentID:  documentID,
		SignerEmail: signerEmail,
		Type:        constant.JWT_TYPE_SIGNING,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps two tokens for the same signer and expiry distinct
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt.Add(c.grace)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// VerifySigningToken fails closed with ErrInvalidSigningToken for anything that
// is not a well formed, unexpired signing token signed with our secret.
func (c *SigningTokenCodec) VerifySigningToken(token string) (*SigningClaims, error) {
	claims := &SigningClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSigningToken
	}

	if claims.Type != constant.JWT_TYPE_SIGNING || claims.SignatureID == "" || claims.DocumentID == "" {
		return nil, ErrInvalidSigningToken
	}

	return claims, nil
}
