package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates access tokens from refresh tokens. It is embedded as a
// claim so one kind can never be replayed as the other.
type Kind string

const (
	// KindAccess marks short-lived per-request credentials.
	KindAccess Kind = "access"
	// KindRefresh marks the longer-lived credential used solely to mint a new
	// access/refresh pair.
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is returned when a token's expiry has passed. The expiry is
	// checked against wall-clock time with zero grace window.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for undecodable tokens and bad signatures.
	ErrMalformed = errors.New("token malformed or badly signed")
	// ErrWrongKind is returned when a token decodes cleanly but carries a
	// kind other than the one the caller demanded.
	ErrWrongKind = errors.New("token kind mismatch")
)

// Claims is the signed claim set carried by both token kinds.
type Claims struct {
	SubjectID string `json:"sub"`
	SessionID string `json:"sid"`
	Kind      Kind   `json:"knd"`
	jwt.RegisteredClaims
}

// RefreshID returns the token's unique identifier. For refresh tokens this is
// the value the session store compares during rotation.
func (c *Claims) RefreshID() string {
	return c.ID
}

// Config carries the process-wide signing material and validation settings.
// The secret is loaded once at startup and read-only thereafter.
type Config struct {
	Secret []byte
	Issuer string
}

// Codec encodes and decodes signed, tamper-evident session tokens. It is
// stateless apart from the shared signing secret and safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates the signing configuration. An absent secret is a fatal
// initialization failure, not a per-request condition.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	return &Codec{config: cfg}, nil
}

// Encode mints a signed token of the given kind bound to a subject and
// session. The returned token id (jti) is what the session store tracks for
// refresh rotation.
func (c *Codec) Encode(subjectID, sessionID string, kind Kind, ttl time.Duration) (string, string, error) {
	if subjectID == "" || sessionID == "" {
		return "", "", errors.New("subject and session ids are required")
	}
	if ttl <= 0 {
		return "", "", errors.New("ttl must be positive")
	}

	jti := uuid.NewString()
	now := time.Now()
	claims := Claims{
		SubjectID: subjectID,
		SessionID: sessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// Decode verifies signature, shape, expiry, and kind. It never mutates state;
// session liveness is the session store's concern, not the codec's.
func (c *Codec) Decode(tok string, want Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	return c.decode(tok, want, options)
}

// DecodeExpired verifies everything Decode does except expiry. Refresh needs
// it to recover the pair binding from the access token it is about to
// replace, which has usually already expired.
func (c *Codec) DecodeExpired(tok string, want Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	}
	return c.decode(tok, want, options)
}

func (c *Codec) decode(tok string, want Kind, options []jwt.ParserOption) (*Claims, error) {
	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tok, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.SubjectID == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}

	return claims, nil
}
