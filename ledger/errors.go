// SPDX-License-Identifier: GPL-3.0-only

package ledger

import "errors"

var (
	ErrNotFound        = errors.New("ledger: not found")
	ErrAlreadyExists   = errors.New("ledger: already exists")
	ErrInvalidArgument = errors.New("ledger: invalid argument")

	// License issuance and validation
	ErrPlanRequired    = errors.New("ledger: paid plan required")
	ErrAlreadyIssued   = errors.New("ledger: license already issued")
	ErrLicenseKeyTaken = errors.New("ledger: license key already in use")
	ErrPlanExpired     = errors.New("ledger: plan expired")
	ErrNoCreditsLeft   = errors.New("ledger: no credits remaining")

	// Payments
	ErrPaymentRejected  = errors.New("ledger: payment could not be verified")
	ErrDuplicatePayment = errors.New("ledger: payment already applied")
)
