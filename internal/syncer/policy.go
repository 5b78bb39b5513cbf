package syncer

import (
	"fmt"
	"time"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
)

// ConstraintKind says how a folder's messages are narrowed.
type ConstraintKind int

const (
	FetchAll ConstraintKind = iota
	FetchLastN
	FetchSince
)

func (k ConstraintKind) String() string {
	switch k {
	case FetchLastN:
		return "last_n"
	case FetchSince:
		return "since"
	default:
		return "all"
	}
}

// FetchConstraint is a resolved sync policy. Limit is set for FetchLastN
// and Since for FetchSince.
type FetchConstraint struct {
	Kind  ConstraintKind
	Limit int
	Since time.Time
}

const day = 24 * time.Hour

// ResolvePolicy turns a configured policy into a fetch constraint relative
// to now. A month counts as 30 days. The value is ignored for LimitAll and
// must be positive for every other kind.
func ResolvePolicy(p config.SyncPolicy, now time.Time) (FetchConstraint, error) {
	if p.Kind == config.LimitAll {
		return FetchConstraint{Kind: FetchAll}, nil
	}

	var unit time.Duration
	switch p.Kind {
	case config.LimitLastN:
	case config.LimitDays:
		unit = day
	case config.LimitWeeks:
		unit = 7 * day
	case config.LimitMonths:
		unit = 30 * day
	default:
		return FetchConstraint{}, &syncerr.ConfigError{
			Field:  "sync_limit_type",
			Reason: fmt.Sprintf("unknown limit type %q", p.Kind),
		}
	}

	if p.Value == nil {
		return FetchConstraint{}, &syncerr.ConfigError{
			Field:  "sync_limit_value",
			Reason: fmt.Sprintf("required for limit type %s", p.Kind),
		}
	}
	if *p.Value <= 0 {
		return FetchConstraint{}, &syncerr.ConfigError{
			Field:  "sync_limit_value",
			Reason: fmt.Sprintf("must be positive, got %d", *p.Value),
		}
	}

	if p.Kind == config.LimitLastN {
		return FetchConstraint{Kind: FetchLastN, Limit: *p.Value}, nil
	}
	return FetchConstraint{Kind: FetchSince, Since: now.Add(-time.Duration(*p.Value) * unit)}, nil
}
