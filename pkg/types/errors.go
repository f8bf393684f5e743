package types

import "errors"

// Not-found errors.
var (
	ErrLeaseNotFound         = errors.New("lease not found")
	ErrAddendumNotFound      = errors.New("addendum not found")
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrTokenNotFound         = errors.New("signing token not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrLateFeeNotFound       = errors.New("late fee not found")
)

// Validation errors. Rejected before any state change.
var (
	ErrIncompleteLeaseTerms = errors.New("lease terms incomplete")
	ErrMissingPaymentMethod = errors.New("payment method required for this payment type")
	ErrNoLateFeePolicy      = errors.New("no late fee policy configured")
)

// State-conflict errors. The operation is not legal from the row's
// current state; never retried automatically.
var (
	ErrInvalidDocumentState = errors.New("document state does not allow this operation")
	ErrTokenExpired         = errors.New("signing token expired")
	ErrTokenAlreadyUsed     = errors.New("signing token already used")
	ErrDuplicateSignature   = errors.New("signer already signed this document")
	ErrUnauthorizedSigner   = errors.New("signer is not a required signer on this document")
	ErrNoActiveLease        = errors.New("no active lease to terminate")
	ErrLeaseNotActive       = errors.New("lease is not active")
	ErrTenantNotOnLease     = errors.New("tenant is not a party to this lease")
	ErrPaymentNotRefundable = errors.New("payment is not refundable")
	ErrLateFeeAlreadyPaid   = errors.New("late fee already paid")
	ErrLateFeeAlreadyWaived = errors.New("late fee already waived")
	ErrDocumentHashMismatch = errors.New("uploaded document does not match recorded hash")
)

// External-dependency errors.
var (
	ErrGateway           = errors.New("payment gateway error")
	ErrEventVerification = errors.New("event signature verification failed")
)
