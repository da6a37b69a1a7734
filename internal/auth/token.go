package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// TokenTTLs maps an issuing context to its token lifetime.
type TokenTTLs map[domain.TokenContext]time.Duration

// DefaultTokenTTLs gives standard logins one day and business or admin
// portal logins seven days.
var DefaultTokenTTLs = TokenTTLs{
	domain.TokenContextStandard:    24 * time.Hour,
	domain.TokenContextBusiness:    7 * 24 * time.Hour,
	domain.TokenContextAdminPortal: 7 * 24 * time.Hour,
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttls   TokenTTLs
	now    func() time.Time
}

// NewTokenManager builds a new manager. Missing contexts fall back to the
// default table.
func NewTokenManager(secret, issuer string, ttls TokenTTLs) *TokenManager {
	merged := make(TokenTTLs, len(DefaultTokenTTLs))
	for ctx, ttl := range DefaultTokenTTLs {
		merged[ctx] = ttl
	}
	for ctx, ttl := range ttls {
		if ttl > 0 {
			merged[ctx] = ttl
		}
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttls: merged, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// TTL returns the lifetime for an issuing context.
func (tm *TokenManager) TTL(ctx domain.TokenContext) time.Duration {
	if ttl, ok := tm.ttls[ctx]; ok {
		return ttl
	}
	return tm.ttls[domain.TokenContextStandard]
}

// Claims describes JWT payload. Role, admin flag and permissions are a
// snapshot taken at issuance. Super admins carry the full matrix.
type Claims struct {
	IdentityID  string                   `json:"identity_id"`
	Email       string                   `json:"email"`
	Username    string                   `json:"username,omitempty"`
	Kind        domain.Kind              `json:"kind"`
	Role        string                   `json:"role"`
	IsAdmin     bool                     `json:"is_admin"`
	SuperAdmin  bool                     `json:"super_admin,omitempty"`
	Permissions []domain.PermissionEntry `json:"permissions,omitempty"`
	Context     domain.TokenContext      `json:"ctx"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the identity.
func (tm *TokenManager) GenerateToken(identity *domain.Identity, caps Capabilities, ctx domain.TokenContext) (*domain.Session, error) {
	if identity == nil || identity.ID == "" {
		return nil, errors.New("identity required")
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.TTL(ctx))

	claims := &Claims{
		IdentityID:  identity.ID,
		Email:       identity.Email,
		Username:    identity.Username,
		Kind:        identity.Kind,
		Role:        identity.Role,
		IsAdmin:     identity.IsAdmin,
		SuperAdmin:  caps.SuperAdmin,
		Permissions: caps.Entries(),
		Context:     ctx,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Token: tokenString, Context: ctx, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// ParseToken validates and returns claims. Expired tokens yield
// domain.ErrTokenExpired; every other failure yields domain.ErrTokenInvalid.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.IdentityID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
