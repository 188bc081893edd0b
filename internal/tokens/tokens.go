package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/modular_monolith/internal/models"
)

// Issuer mints HS256 access tokens and validates tokens presented on refresh.
// The signing algorithm is pinned: tokens signed with anything else fail
// validation regardless of key material.
type Issuer struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssueAccessToken signs a token carrying the user identity, the role name
// and every claim of that role as a flat key/value pair. Each call draws a
// fresh jti, the refresh token issued with it is bound to that jti.
func (i *Issuer) IssueAccessToken(user models.User, roleName string, roleClaims []models.RoleClaim) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":    user.Email,
		"userid": user.ID,
		"role":   roleName,
		"jti":    jti,
		"iss":    i.Issuer,
		"aud":    i.Audience,
		"iat":    now.Unix(),
		"exp":    now.Add(i.AccessTTL).Unix(),
	}
	for _, rc := range roleClaims {
		claims[rc.Claim] = rc.Value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.Secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// NewRefreshToken returns a fresh opaque refresh token string. Refresh tokens
// are random identifiers, not structured tokens.
func (i *Issuer) NewRefreshToken() string {
	return uuid.NewString()
}

// ParsePresented verifies the signature, issuer and audience of a presented
// access token but deliberately ignores its lifetime: the refresh flow needs
// the claims of an already expired token to identify its chain. Returns nil
// on any parse or verification failure.
func (i *Issuer) ParsePresented(raw string) jwt.MapClaims {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return i.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	// WithoutClaimsValidation turns off all claim checks, so issuer and
	// audience are re-checked by hand here.
	iss, err := claims.GetIssuer()
	if err != nil || iss != i.Issuer {
		return nil
	}
	aud, err := claims.GetAudience()
	if err != nil || !containsAudience(aud, i.Audience) {
		return nil
	}

	return claims
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// StringClaim extracts a string claim, "" when absent or not a string.
func StringClaim(claims jwt.MapClaims, name string) string {
	v, ok := claims[name].(string)
	if !ok {
		return ""
	}
	return v
}
