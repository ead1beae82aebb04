package models

// Borrower types recognised by the circulation policy. The borrower
// directory itself (accounts, enrollment) is owned elsewhere; circulation
// only needs the type and the active flag.
const (
	BorrowerTypeStudent = "student"
	BorrowerTypeStaff   = "staff"
)

// ValidBorrowerType reports whether t is a known borrower type.
func ValidBorrowerType(t string) bool {
	return t == BorrowerTypeStudent || t == BorrowerTypeStaff
}
