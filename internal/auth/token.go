package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
)

const (
	issuer         = "clinic-booking"
	inviteAudience = "facility-invite"

	// InviteTTL is how long a facility admin invite stays valid.
	InviteTTL = 72 * time.Hour
)

var ErrInvalidToken = apperr.Unauthorized("invalid token")

type Claims struct {
	Role appointment.Role `json:"role"`
	jwt.RegisteredClaims
}

// InviteClaims let the holder register as an admin of FacilityID.
type InviteClaims struct {
	FacilityID string `json:"facilityId"`
	InvitedBy  string `json:"invitedBy"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u *appointment.User) (string, error) {
	now := t.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the user id it was issued for.
func (t *Tokens) Verify(raw string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || len(claims.Audience) > 0 {
		return uuid.Nil, nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidToken
	}
	return userID, claims, nil
}

// IssueInvite signs an invite for facilityID on behalf of the inviting admin.
func (t *Tokens) IssueInvite(facilityID, invitedBy uuid.UUID) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(InviteTTL)
	claims := InviteClaims{
		FacilityID: facilityID.String(),
		InvitedBy:  invitedBy.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{inviteAudience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign invite: %w", err)
	}
	return signed, expires, nil
}

// VerifyInvite returns the facility an invite was issued for.
func (t *Tokens) VerifyInvite(raw string) (uuid.UUID, error) {
	claims := &InviteClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(inviteAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidInvite
	}

	facilityID, err := uuid.Parse(claims.FacilityID)
	if err != nil {
		return uuid.Nil, ErrInvalidInvite
	}
	return facilityID, nil
}
