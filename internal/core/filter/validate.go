package filter

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
)

// Validate checks a filter rule at write time so evaluation can assume
// pre-validated rules: length comparisons need a positive integer value,
// regex comparisons need a compilable pattern.
func Validate(f domain.Filter) error {
	switch f.MatchType {
	case domain.MatchShorterThan, domain.MatchLongerThan:
		limit, err := strconv.Atoi(f.Value)
		if err != nil || limit <= 0 {
			return fmt.Errorf("%w: %q is not a positive integer", coreerrors.ErrInvalidFilterValue, f.Value)
		}
	case domain.MatchRegex, domain.MatchNotRegex:
		if _, err := regexp.Compile(f.Value); err != nil {
			return fmt.Errorf("%w: %v", coreerrors.ErrInvalidFilterValue, err)
		}
	}

	return nil
}
