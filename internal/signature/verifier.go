package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"twin-bridge/internal/common/logging"
)

// Verifier handles webhook signature verification
type Verifier struct {
	config *Config
	logger logging.Logger
}

// NewVerifier creates a new signature verifier
func NewVerifier(config *Config, logger logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	config.SetDefaults()

	return &Verifier{
		config: config,
		logger: logger,
	}
}

// Verify checks that the given headers carry a valid signature over body.
// It fails closed: any missing header, malformed signature, or mismatch
// returns a VerificationError.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	headerValue := headers.Get(v.config.Header)
	if headerValue == "" {
		err := NewVerificationError(v.config.Header, "missing signature header")
		v.handleFailure(err)
		return err
	}

	var err error
	switch v.config.Scheme {
	case SchemeDTJWT:
		err = v.verifyJWT(headerValue, body)
	case SchemeHMACSHA256:
		err = v.verifyHMAC(headerValue, body)
	default:
		err = NewVerificationError(v.config.Header, "unsupported scheme: %s", v.config.Scheme)
	}

	if err != nil {
		v.handleFailure(err)
		return err
	}

	v.logger.Debug("Signature verified successfully",
		logging.Field{Key: "header", Value: v.config.Header},
		logging.Field{Key: "scheme", Value: v.config.Scheme},
	)
	return nil
}

// verifyJWT validates the platform's signature scheme: an HS256 JWT signed
// with the shared secret whose checksum claim is the hex SHA-1 of the body.
func (v *Verifier) verifyJWT(headerValue string, body []byte) error {
	token, err := jwt.Parse(headerValue,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(v.config.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.config.Leeway),
	)
	if err != nil {
		return NewVerificationError(v.config.Header, "invalid signature token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return NewVerificationError(v.config.Header, "unexpected claims format")
	}

	checksum, ok := claims["checksum"].(string)
	if !ok {
		return NewVerificationError(v.config.Header, "missing checksum claim")
	}

	provided, err := hex.DecodeString(checksum)
	if err != nil {
		return NewVerificationError(v.config.Header, "malformed checksum encoding")
	}

	sum := sha1.Sum(body)
	if !hmac.Equal(provided, sum[:]) {
		return NewVerificationError(v.config.Header, "checksum mismatch")
	}

	return nil
}

// verifyHMAC validates a hex HMAC-SHA256 digest of the raw body. An optional
// "sha256=" prefix on the header value is accepted.
func (v *Verifier) verifyHMAC(headerValue string, body []byte) error {
	encoded := strings.TrimPrefix(headerValue, "sha256=")

	provided, err := hex.DecodeString(encoded)
	if err != nil {
		return NewVerificationError(v.config.Header, "malformed signature encoding")
	}

	mac := hmac.New(sha256.New, []byte(v.config.Secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return NewVerificationError(v.config.Header, "signature mismatch")
	}

	return nil
}

func (v *Verifier) handleFailure(err error) {
	v.logger.Warn("Signature verification failed",
		logging.Field{Key: "header", Value: v.config.Header},
		logging.Field{Key: "scheme", Value: v.config.Scheme},
		logging.Field{Key: "error", Value: err.Error()},
	)
}

// PreserveRequestBody reads and preserves the request body for signature verification
func PreserveRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	// Replace the body with a new reader
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
