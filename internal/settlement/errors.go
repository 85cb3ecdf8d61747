package settlement

import "errors"

var (
	// Validation errors: reported before any write, the dialog stays open.
	ErrEmptySelection = errors.New("selection has no units to pay")
	ErrMissingMethod  = errors.New("selected line has no payment method assigned")
	ErrInvalidTaxID   = errors.New("tax id must be 10 or 13 digits")
	ErrMissingBilled  = errors.New("billed name is required for an invoice")
	ErrNotPayable     = errors.New("song request lines cannot be paid")

	// ErrNotFound covers stale selections referencing rows that no longer
	// exist; the caller should re-fetch the pending lines.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a line quantity changed between building
	// the selection and committing it. The stale selection is rejected and
	// must be rebuilt from fresh pending lines.
	ErrConflict = errors.New("line was modified by a concurrent settlement")

	// ErrTableLocked means another staff member is committing a settlement
	// for the same table right now.
	ErrTableLocked = errors.New("table settlement is locked by another commit")
)
