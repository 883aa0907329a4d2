package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/mediscan/mediscan-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError.
// Returns nil if the error is not a pq.Error or has no useful mapping.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	case "23514": // check_violation
		return mapCheckConstraint(pqErr)

	case "23505": // unique_violation
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23502": // not_null_violation
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case "22P02": // invalid_text_representation, usually a malformed uuid
		return errors.BadRequest("malformed identifier")

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "gtin_format"):
		return errors.Validation(map[string]string{
			"gtin": "must be 8 to 14 digits",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: AUTHENTIC, SUSPICIOUS, COUNTERFEIT, EXPIRED, UNVERIFIED",
		})

	case strings.Contains(constraint, "risk_level_valid"), strings.Contains(constraint, "severity_valid"):
		return errors.Validation(map[string]string{
			"severity": "must be one of: LOW, MEDIUM, HIGH, CRITICAL",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.HasPrefix(pqErr.Constraint, "verifications_"):
		return "a verification with this id already exists"
	case strings.HasPrefix(pqErr.Constraint, "regulatory_alerts_"):
		return "a regulatory alert with this id already exists"
	default:
		return "a record with these values already exists"
	}
}
