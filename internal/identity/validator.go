package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/crypto/blake2b"

	"github.com/ledgergate/ledgergate/internal/shared"
)

// clock skew tolerated when checking expiry.
const expiryLeeway = 30 * time.Second

// ValidatorConfig collects the expectations the validator enforces.
type ValidatorConfig struct {
	PublicKey ed25519.PublicKey
	Audience  string
	Issuer    string
}

// Validator verifies signed identity tokens and produces Principals. It has
// no side effects beyond revocation-store reads.
type Validator struct {
	key         ed25519.PublicKey
	audience    string
	issuer      string
	revocations *RevocationStore
	composites  CompositeRoles
	now         func() time.Time
}

// NewValidator constructs a Validator. A nil composites table falls back to
// the built-in definitions.
func NewValidator(cfg ValidatorConfig, revocations *RevocationStore, composites CompositeRoles) *Validator {
	if composites == nil {
		composites = DefaultComposites()
	}
	return &Validator{
		key:         cfg.PublicKey,
		audience:    cfg.Audience,
		issuer:      cfg.Issuer,
		revocations: revocations,
		composites:  composites,
		now:         time.Now,
	}
}

// tokenClaims is the wire shape of the identity provider's access token.
type tokenClaims struct {
	jwt.Claims
	Roles      []string `json:"roles"`
	Department string   `json:"department"`
	Groups     []string `json:"groups"`
}

// Validate checks signature, expiry, audience, issuer and revocation, then
// returns the Principal with its composite roles already expanded.
func (v *Validator) Validate(ctx context.Context, raw string) (Principal, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return Principal{}, shared.ErrInvalidSignature
	}
	var claims tokenClaims
	if err := tok.Claims(v.key, &claims); err != nil {
		return Principal{}, shared.ErrInvalidSignature
	}
	err = claims.ValidateWithLeeway(jwt.Expected{
		Issuer:      v.issuer,
		AnyAudience: jwt.Audience{v.audience},
		Time:        v.now(),
	}, expiryLeeway)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrExpired):
		return Principal{}, shared.ErrTokenExpired
	case errors.Is(err, jwt.ErrInvalidAudience):
		return Principal{}, shared.ErrBadAudience
	case errors.Is(err, jwt.ErrInvalidIssuer):
		return Principal{}, fmt.Errorf("%w: issuer mismatch", shared.ErrAuthentication)
	default:
		return Principal{}, fmt.Errorf("%w: %v", shared.ErrAuthentication, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: subject missing", shared.ErrAuthentication)
	}
	if claims.ID == "" {
		return Principal{}, fmt.Errorf("%w: token id missing", shared.ErrAuthentication)
	}
	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Fail closed: an unreachable revocation store never grants access.
			return Principal{}, fmt.Errorf("%w: revocation check: %v", shared.ErrAuthentication, err)
		}
		if revoked {
			return Principal{}, shared.ErrTokenRevoked
		}
	}
	return Principal{
		ID:         claims.Subject,
		Roles:      v.composites.Expand(claims.Roles),
		Department: claims.Department,
		Groups:     append([]string(nil), claims.Groups...),
		TokenID:    claims.ID,
		TokenPrint: Fingerprint(raw),
	}, nil
}

// Fingerprint returns a short blake2b digest of the raw token so audit
// entries can correlate decisions without ever storing the token itself.
func Fingerprint(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}
