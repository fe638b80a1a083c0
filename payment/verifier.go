// SPDX-License-Identifier: GPL-3.0-only

// Package payment checks gateway payment callbacks before any credit or
// plan change is applied.
package payment

import (
	"silently-server/crypto"
)

// Verifier checks Razorpay checkout signatures: hex HMAC-SHA256 of
// "<order_id>|<payment_id>" under the key secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func signedMessage(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

// Configured reports whether a key secret was provided. Without one any
// client can forge signatures, so callers must not trust Verify.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Verify reports whether signature is the HMAC of the order and payment ids
// under the secret. Malformed signatures are reported as invalid.
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	return crypto.VerifyHMACSHA256(v.secret, signedMessage(orderID, paymentID), signature)
}

func (v *Verifier) Sign(orderID, paymentID string) string {
	return crypto.SignHMACSHA256(v.secret, signedMessage(orderID, paymentID))
}
