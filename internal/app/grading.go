package app

import (
	"strings"

	"klasquiz-service/internal/domain"
)

// Normalize collapses whitespace runs to a single space, trims, and
// lowercases. Idempotent, so stored answers can be compared raw.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// PointsFor returns the fixed point value for a grading status.
func PointsFor(status string) int {
	switch status {
	case domain.StatusCorrect:
		return 10
	case domain.StatusTypo:
		return 5
	default:
		return 0
	}
}

// AutoGrade compares a submitted answer to the correct one. It never
// produces StatusWrong; a mismatch stays StatusUnknown awaiting teacher
// review.
func AutoGrade(given, correct string) (string, int) {
	if Normalize(given) == Normalize(correct) {
		return domain.StatusCorrect, PointsFor(domain.StatusCorrect)
	}
	return domain.StatusUnknown, 0
}

// ValidGradeStatus reports whether a teacher override status is one of
// the four known grading statuses.
func ValidGradeStatus(status string) bool {
	switch status {
	case domain.StatusCorrect, domain.StatusTypo, domain.StatusWrong, domain.StatusUnknown:
		return true
	}
	return false
}
