package signature

import "time"

// Scheme names accepted in Config.Scheme.
const (
	// SchemeDTJWT verifies an HS256 JWT whose checksum claim covers the body
	SchemeDTJWT = "dt-jwt"
	// SchemeHMACSHA256 verifies a hex HMAC-SHA256 digest of the raw body
	SchemeHMACSHA256 = "hmac-sha256"
)

// Config holds signature verification settings
type Config struct {
	// Header is the HTTP header containing the signature
	Header string

	// Secret is the shared secret the sender signs with
	Secret string

	// Scheme selects the verification scheme
	// Options: "dt-jwt" (default), "hmac-sha256"
	Scheme string

	// Leeway is the accepted clock skew when validating the signature JWT's
	// exp/iat claims. Ignored for the hmac-sha256 scheme, which carries no
	// timestamp; replay protection there is a documented omission.
	Leeway time.Duration
}

// SetDefaults applies default values to the configuration
func (c *Config) SetDefaults() {
	if c.Header == "" {
		c.Header = "X-Dt-Signature"
	}

	if c.Scheme == "" {
		c.Scheme = SchemeDTJWT
	}

	if c.Leeway <= 0 {
		c.Leeway = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Header == "" {
		return NewValidationError("header is required")
	}

	if c.Secret == "" {
		return NewValidationError("secret is required")
	}

	switch c.Scheme {
	case SchemeDTJWT, SchemeHMACSHA256:
		// Valid
	default:
		return NewValidationError("unsupported scheme: %s", c.Scheme)
	}

	return nil
}
