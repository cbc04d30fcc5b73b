package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, of the wrong kind, or otherwise invalid.
var ErrInvalidToken = errors.New("invalid token")

// TokenKind distinguishes access tokens from refresh tokens so one cannot stand in for the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims are the JWT claims for both token kinds. Subject is the account id.
// The active org is not carried in the token; it lives on the account row.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string    `json:"sid"`
	Kind      TokenKind `json:"typ"`
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// IssuedToken is a signed token with its jti and expiry.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// issuer and audience are set on claims and enforced on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssueAccess issues a short-lived access token for the session.
func (p *TokenProvider) IssueAccess(sessionID, accountID string) (IssuedToken, error) {
	return p.issue(KindAccess, sessionID, accountID, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh token. The caller stores the jti on the
// session row to bind rotation.
func (p *TokenProvider) IssueRefresh(sessionID, accountID string) (IssuedToken, error) {
	return p.issue(KindRefresh, sessionID, accountID, p.refreshTTL)
}

// ValidateAccess parses an access token and checks signature, expiry, issuer, audience and kind.
func (p *TokenProvider) ValidateAccess(token string) (*Claims, error) {
	return p.validate(token, KindAccess)
}

// ValidateRefresh parses a refresh token and checks signature, expiry, issuer, audience and kind.
func (p *TokenProvider) ValidateRefresh(token string) (*Claims, error) {
	return p.validate(token, KindRefresh)
}

func (p *TokenProvider) issue(kind TokenKind, sessionID, accountID string, ttl time.Duration) (IssuedToken, error) {
	jti, err := generateJTI()
	if err != nil {
		return IssuedToken{}, err
	}
	now := p.now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionID: sessionID,
		Kind:      kind,
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return IssuedToken{}, ErrInvalidKey
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

func (p *TokenProvider) validate(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return p.publicKey, nil },
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
