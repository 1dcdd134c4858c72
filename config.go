package goidentity

import (
	"errors"
	"time"
)

// Config groups every tunable of the engine. Zero values fall back to the
// documented defaults in defaultConfig; Validate runs once at Build and
// treats missing signing material as fatal.
type Config struct {
	Token        TokenConfig
	Session      SessionConfig
	Verification VerificationConfig
	Password     PasswordConfig
	Login        LoginConfig
	Metrics      MetricsConfig
}

// TokenConfig carries the session-token TTLs and the process-wide signing
// secret. The secret is loaded once at startup and read-only thereafter.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningSecret []byte
	Issuer        string
}

// SessionConfig namespaces the session store's Redis keys.
type SessionConfig struct {
	RedisPrefix string
}

// VerificationConfig controls verification-token lifetime and the length of
// the numeric code issued for password resets.
type VerificationConfig struct {
	TTL         time.Duration
	CodeDigits  int
	RedisPrefix string
}

// PasswordConfig carries the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// LoginConfig is the login admission policy. AllowUnverified lets subjects in
// StatusUnverified authenticate before confirming their email; suspended
// subjects are always rejected.
type LoginConfig struct {
	AllowUnverified bool
}

// MetricsConfig toggles the in-process counters and the latency histogram on
// the verify hot path.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "goidentity",
		},
		Session: SessionConfig{
			RedisPrefix: "ids",
		},
		Verification: VerificationConfig{
			TTL:         24 * time.Hour,
			CodeDigits:  6,
			RedisPrefix: "idv",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Login: LoginConfig{
			AllowUnverified: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Token.SigningSecret != nil {
		out.Token.SigningSecret = append([]byte(nil), cfg.Token.SigningSecret...)
	}
	return out
}

// Validate checks internal invariants. A violation here is an initialization
// failure, not a per-request condition.
func (c Config) Validate() error {
	if len(c.Token.SigningSecret) < 32 {
		return errors.New("token signing secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if c.Verification.TTL <= 0 {
		return errors.New("verification TTL must be positive")
	}
	if c.Verification.CodeDigits < 6 || c.Verification.CodeDigits > 10 {
		return errors.New("verification code digits must be between 6 and 10")
	}
	return nil
}
