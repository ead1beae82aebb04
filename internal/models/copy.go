package models

import "time"

// CopyStatus represents the circulation state of a single catalog copy.
type CopyStatus string

const (
	CopyStatusAvailable   CopyStatus = "available"
	CopyStatusBorrowed    CopyStatus = "borrowed"
	CopyStatusReserved    CopyStatus = "reserved"
	CopyStatusMaintenance CopyStatus = "maintenance"
	CopyStatusDisposed    CopyStatus = "disposed"
)

// copyTransitions is the allowed status transition table. The copy status
// field is written by borrowing, reservation fulfillment and disposal alike:
// writers that take the target status as a parameter (CloseLoan,
// SetCopyStatus) validate the pair against this table before touching the
// row, and the fixed-edge statements (checkout, fulfillment, disposal) each
// encode one legal pair in their conditional update. Disposed is terminal.
var copyTransitions = map[CopyStatus][]CopyStatus{
	CopyStatusAvailable:   {CopyStatusBorrowed, CopyStatusReserved, CopyStatusMaintenance, CopyStatusDisposed},
	CopyStatusBorrowed:    {CopyStatusAvailable, CopyStatusMaintenance, CopyStatusDisposed},
	CopyStatusReserved:    {CopyStatusAvailable, CopyStatusBorrowed, CopyStatusMaintenance, CopyStatusDisposed},
	CopyStatusMaintenance: {CopyStatusAvailable, CopyStatusDisposed},
	CopyStatusDisposed:    {},
}

// IsValid reports whether s is a known copy status.
func (s CopyStatus) IsValid() bool {
	_, ok := copyTransitions[s]
	return ok
}

// IsTerminal reports whether a copy in status s can never circulate again.
func (s CopyStatus) IsTerminal() bool {
	return s == CopyStatusDisposed
}

// CanTransition reports whether moving from s to target is a legal copy
// status transition.
func (s CopyStatus) CanTransition(target CopyStatus) bool {
	for _, allowed := range copyTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CopyResponse represents a catalog copy as exposed to callers.
type CopyResponse struct {
	ID              int32      `json:"id"`
	Barcode         string     `json:"barcode"`
	BookID          int32      `json:"book_id"`
	Status          CopyStatus `json:"status"`
	AcquisitionDate time.Time  `json:"acquisition_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
