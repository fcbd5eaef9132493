package entity

// Payment method constants. Clinic payment codes outside this set are accepted as-is.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
	MethodOther    = "other"
)

// Chart bill status constants
const (
	BillStatusUnbilled = 0
	BillStatusBilled   = 1
)

// Default naming fragments when the receipt has no identity yet
const (
	DefaultPatientSlug = "patient"
	DefaultReceiptSlug = "receipt"
)

// DefaultReceiptPrefix is the leading letter of allocated receipt identifiers
const DefaultReceiptPrefix = "A"

// DefaultCurrency is the label printed before amounts
const DefaultCurrency = "RM"
