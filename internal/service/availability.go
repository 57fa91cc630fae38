package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vadimbarashkov/notveryshort/internal/database"
)

// CheckErrorPolicy decides what the availability check reports when the
// datastore lookup fails for a reason other than a missing row.
type CheckErrorPolicy int

const (
	// TreatAsAvailable reports the code as free. A transient failure may then
	// lead to an insert that the unique constraint rejects.
	TreatAsAvailable CheckErrorPolicy = iota
	// TreatAsTaken reports the code as taken and moves on to the next attempt.
	TreatAsTaken
	// FailOnCheckError aborts the shorten operation with the lookup error.
	FailOnCheckError
)

var policyNames = map[CheckErrorPolicy]string{
	TreatAsAvailable: "treat_as_available",
	TreatAsTaken:     "treat_as_taken",
	FailOnCheckError: "fail",
}

func (p CheckErrorPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CheckErrorPolicy(%d)", int(p))
}

// ParseCheckErrorPolicy maps a configuration value to a policy.
func ParseCheckErrorPolicy(s string) (CheckErrorPolicy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("service.ParseCheckErrorPolicy: unknown policy %q", s)
}

// isTaken reports whether code is already bound to a link.
// A non-nil error is only returned under FailOnCheckError.
func (s *URLService) isTaken(ctx context.Context, code string) (bool, error) {
	const op = "service.URLService.isTaken"

	_, err := s.repo.FindByCode(ctx, code)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, database.ErrLinkNotFound) {
		return false, nil
	}

	switch s.onCheckError {
	case TreatAsTaken:
		s.logger.Warn("availability check failed, treating code as taken",
			slog.String("op", op), slog.String("code", code), slog.Any("err", err))
		return true, nil
	case FailOnCheckError:
		return false, fmt.Errorf("%s: failed to check code availability: %w", op, err)
	default:
		s.logger.Warn("availability check failed, treating code as available",
			slog.String("op", op), slog.String("code", code), slog.Any("err", err))
		return false, nil
	}
}
