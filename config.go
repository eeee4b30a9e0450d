package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Keys              KeysConfig
	JWT               JWTConfig
	Refresh           RefreshConfig
	Lockout           LockoutConfig
	RateLimit         RateLimitConfig
	Registration      RegistrationConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Password          PasswordConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig carries the RSA key material handed to the keys package.
// PrivateKey and PublicKey accept PEM, PEM with literal \n escapes, or
// headerless base64 DER.
type KeysConfig struct {
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authcore APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by authcore APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by authcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	EnableLoginThrottle   bool
	MaxLoginAttempts      int
	LoginWindow           time.Duration
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshWindow         time.Duration
}

// RegistrationConfig defines a public type used by authcore APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	Enabled     bool
	DefaultRole string
	MaxAttempts int
	Window      time.Duration
}

// EmailVerificationConfig defines a public type used by authcore APIs.
//
// EmailVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationConfig struct {
	Enabled         bool
	CodeTTL         time.Duration
	OTPDigits       int
	MaxAttempts     int
	RequireForLogin bool
	MaxRequests     int
	RequestWindow   time.Duration
	RedisPrefix     string
}

// PasswordResetConfig defines a public type used by authcore APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled       bool
	TokenTTL      time.Duration
	MaxRequests   int
	RequestWindow time.Duration
	RedisPrefix   string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults. Key material is empty and
// must be filled in before Validate passes.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 24 * time.Hour,
			Leeway:    30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:         7 * 24 * time.Hour,
			RedisPrefix: "art",
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			EnableLoginThrottle:   true,
			MaxLoginAttempts:      10,
			LoginWindow:           time.Minute,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    20,
			RefreshWindow:         time.Minute,
		},
		Registration: RegistrationConfig{
			Enabled:     true,
			DefaultRole: "user",
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         true,
			CodeTTL:         15 * time.Minute,
			OTPDigits:       6,
			MaxAttempts:     3,
			RequireForLogin: true,
			MaxRequests:     5,
			RequestWindow:   15 * time.Minute,
			RedisPrefix:     "evc",
		},
		PasswordReset: PasswordResetConfig{
			Enabled:       true,
			TokenTTL:      4 * time.Hour,
			MaxRequests:   5,
			RequestWindow: 15 * time.Minute,
			RedisPrefix:   "prt",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Keys.PrivateKey = cloneBytes(cfg.Keys.PrivateKey)
	out.Keys.PublicKey = cloneBytes(cfg.Keys.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Keys
	if len(c.Keys.PrivateKey) == 0 {
		return errors.New("Keys PrivateKey is required")
	}
	if len(c.Keys.PublicKey) == 0 {
		return errors.New("Keys PublicKey is required")
	}
	if c.Keys.KeyID == "" {
		return errors.New("Keys KeyID is required")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.RedisPrefix == "" {
		return errors.New("Refresh RedisPrefix must not be empty")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("Lockout Threshold must be > 0")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("Lockout Duration must be > 0")
		}
	}

	// Rate limiting
	if c.RateLimit.EnableLoginThrottle {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0 when login throttle is enabled")
		}
		if c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit LoginWindow must be > 0 when login throttle is enabled")
		}
	}
	if c.RateLimit.EnableRefreshThrottle {
		if c.RateLimit.MaxRefreshAttempts <= 0 {
			return errors.New("RateLimit MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.RateLimit.RefreshWindow <= 0 {
			return errors.New("RateLimit RefreshWindow must be > 0 when refresh throttle is enabled")
		}
	}

	// Registration
	if c.Registration.Enabled {
		if c.Registration.DefaultRole == "" {
			return errors.New("Registration DefaultRole is required when registration is enabled")
		}
		if c.Registration.MaxAttempts <= 0 {
			return errors.New("Registration MaxAttempts must be > 0")
		}
		if c.Registration.Window <= 0 {
			return errors.New("Registration Window must be > 0")
		}
	}

	// Email verification
	if c.EmailVerification.Enabled {
		if c.EmailVerification.CodeTTL <= 0 {
			return errors.New("EmailVerification CodeTTL must be > 0")
		}
		if c.EmailVerification.OTPDigits < 6 || c.EmailVerification.OTPDigits > 10 {
			return errors.New("EmailVerification OTPDigits must be between 6 and 10")
		}
		if c.EmailVerification.MaxAttempts <= 0 || c.EmailVerification.MaxAttempts > 5 {
			return errors.New("EmailVerification MaxAttempts must be between 1 and 5")
		}
		if c.EmailVerification.CodeTTL > 15*time.Minute {
			return errors.New("EmailVerification CodeTTL must be <= 15m")
		}
		if c.EmailVerification.MaxRequests <= 0 || c.EmailVerification.RequestWindow <= 0 {
			return errors.New("EmailVerification request throttle must be configured")
		}
		if c.EmailVerification.RedisPrefix == "" {
			return errors.New("EmailVerification RedisPrefix must not be empty")
		}
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin requires EmailVerification Enabled")
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset TokenTTL must be > 0")
		}
		if c.PasswordReset.MaxRequests <= 0 || c.PasswordReset.RequestWindow <= 0 {
			return errors.New("PasswordReset request throttle must be configured")
		}
		if c.PasswordReset.RedisPrefix == "" {
			return errors.New("PasswordReset RedisPrefix must not be empty")
		}
	}
	if c.EmailVerification.Enabled && c.PasswordReset.Enabled &&
		c.EmailVerification.RedisPrefix == c.PasswordReset.RedisPrefix {
		return errors.New("EmailVerification and PasswordReset RedisPrefix must differ")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
