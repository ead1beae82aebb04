package services

import (
	"github.com/shopspring/decimal"

	"github.com/kibetrono/slms/internal/config"
	"github.com/kibetrono/slms/internal/models"
)

// BorrowerPolicy holds the per-borrower-type lending terms.
type BorrowerPolicy struct {
	LoanPeriodDays int
	DailyFineRate  decimal.Decimal
}

// CirculationPolicy is the full lending policy shared by the circulation
// services. It is built once from configuration at startup.
type CirculationPolicy struct {
	Student             BorrowerPolicy
	Staff               BorrowerPolicy
	MaxActiveLoans      int
	MaxReservations     int
	MaxRenewals         int
	ReservationHoldDays int
	DisposalAgeDays     int
	DisposalBatchLimit  int
}

// PolicyFromConfig converts the raw configuration into a policy with exact
// decimal rates.
func PolicyFromConfig(cfg config.CirculationConfig) CirculationPolicy {
	return CirculationPolicy{
		Student: BorrowerPolicy{
			LoanPeriodDays: cfg.Student.LoanPeriodDays,
			DailyFineRate:  decimal.NewFromFloat(cfg.Student.DailyFineRate),
		},
		Staff: BorrowerPolicy{
			LoanPeriodDays: cfg.Staff.LoanPeriodDays,
			DailyFineRate:  decimal.NewFromFloat(cfg.Staff.DailyFineRate),
		},
		MaxActiveLoans:      cfg.MaxActiveLoans,
		MaxReservations:     cfg.MaxReservations,
		MaxRenewals:         cfg.MaxRenewals,
		ReservationHoldDays: cfg.ReservationHoldDays,
		DisposalAgeDays:     cfg.DisposalAgeDays,
		DisposalBatchLimit:  cfg.DisposalBatchLimit,
	}
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() CirculationPolicy {
	return CirculationPolicy{
		Student:             BorrowerPolicy{LoanPeriodDays: 14, DailyFineRate: decimal.NewFromFloat(1.00)},
		Staff:               BorrowerPolicy{LoanPeriodDays: 30, DailyFineRate: decimal.NewFromFloat(0.50)},
		MaxActiveLoans:      5,
		MaxReservations:     5,
		MaxRenewals:         2,
		ReservationHoldDays: 7,
		DisposalAgeDays:     2555,
	}
}

// ForBorrowerType resolves the lending terms for a borrower type.
func (p CirculationPolicy) ForBorrowerType(borrowerType string) (BorrowerPolicy, error) {
	switch borrowerType {
	case models.BorrowerTypeStudent:
		return p.Student, nil
	case models.BorrowerTypeStaff:
		return p.Staff, nil
	default:
		return BorrowerPolicy{}, &models.ValidationError{
			Field:   "borrower_type",
			Message: "unknown borrower type " + borrowerType,
		}
	}
}
