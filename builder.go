package goidentity

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/wizardcld/goidentity/password"
	"github.com/wizardcld/goidentity/session"
	"github.com/wizardcld/goidentity/token"
	"github.com/wizardcld/goidentity/verification"
)

// Builder assembles an [Engine]. Chain the With* setters and call Build once;
// the zero Builder with only a config, a Redis client, and a Directory is a
// working minimum.
type Builder struct {
	config    Config
	hasConfig bool
	redis     redis.UniversalClient
	directory Directory
	notifier  Notifier
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the engine configuration. Fields left at their zero value
// fall back to the package defaults; the signing secret has no default and
// must be provided.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithRedis sets the client backing the session and verification stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the entity-store collaborator.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithNotifier sets the outbound delivery collaborator. Optional: without it
// verification tokens are still issued and consumable, just not delivered.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// Build validates the configuration and wires the engine. It fails fast on
// missing collaborators or invalid config rather than deferring to the first
// request.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("directory is required")
	}

	cfg := defaultConfig()
	if b.hasConfig {
		cfg = mergeConfig(cfg, b.config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Secret: cfg.Token.SigningSecret,
		Issuer: cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:        cfg,
		codec:         codec,
		sessions:      session.NewStore(b.redis, cfg.Session.RedisPrefix),
		verifications: verification.NewStore(b.redis, cfg.Verification.RedisPrefix),
		hasher:        hasher,
		directory:     b.directory,
		notifier:      b.notifier,
		metrics:       NewMetrics(cfg.Metrics),
	}, nil
}

// mergeConfig overlays the caller's config on the defaults, field group by
// field group. Zero durations, empty prefixes, and zero cost parameters keep
// their defaults; booleans are taken as given.
func mergeConfig(base, in Config) Config {
	out := cloneConfig(in)

	if out.Token.AccessTTL == 0 {
		out.Token.AccessTTL = base.Token.AccessTTL
	}
	if out.Token.RefreshTTL == 0 {
		out.Token.RefreshTTL = base.Token.RefreshTTL
	}
	if out.Token.Issuer == "" {
		out.Token.Issuer = base.Token.Issuer
	}
	if out.Session.RedisPrefix == "" {
		out.Session.RedisPrefix = base.Session.RedisPrefix
	}
	if out.Verification.TTL == 0 {
		out.Verification.TTL = base.Verification.TTL
	}
	if out.Verification.CodeDigits == 0 {
		out.Verification.CodeDigits = base.Verification.CodeDigits
	}
	if out.Verification.RedisPrefix == "" {
		out.Verification.RedisPrefix = base.Verification.RedisPrefix
	}
	if out.Password.Memory == 0 {
		out.Password.Memory = base.Password.Memory
	}
	if out.Password.Time == 0 {
		out.Password.Time = base.Password.Time
	}
	if out.Password.Parallelism == 0 {
		out.Password.Parallelism = base.Password.Parallelism
	}
	if out.Password.SaltLength == 0 {
		out.Password.SaltLength = base.Password.SaltLength
	}
	if out.Password.KeyLength == 0 {
		out.Password.KeyLength = base.Password.KeyLength
	}

	return out
}
