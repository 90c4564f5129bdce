// Package signature provides webhook signature verification for Data
// Connector deliveries.
//
// The primary scheme is the one the platform actually uses: the signature
// header carries an HS256 JWT signed with the shared secret, and its
// "checksum" claim must equal the lowercase hex SHA-1 digest of the exact raw
// request body. The JWT's own exp/iat claims bound the request's validity
// window, which gives replay mitigation for free; the accepted clock skew is
// configurable.
//
// A plain HMAC-SHA256 mode (hex digest of the raw body) is selectable for
// emulated senders and test harnesses that do not produce the JWT envelope.
//
// # Usage
//
//	verifier := signature.NewVerifier(&signature.Config{
//	    Header: "X-Dt-Signature",
//	    Secret: secret,
//	}, logger)
//
//	if err := verifier.Verify(r.Header, body); err != nil {
//	    http.Error(w, "Invalid signature", http.StatusUnauthorized)
//	    return
//	}
//
// # Security Considerations
//
//   - Verification fails closed: a missing header, malformed token, wrong
//     algorithm, expired token, or checksum mismatch all reject the request
//   - Digest comparison is constant-time
//   - Always use HTTPS; the signature authenticates the sender, it does not
//     make the payload confidential
package signature
