package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/catalog/internal/domain"
)

// DependencyCheck probes one backing service of the catalog (Firestore,
// the product events topic).
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises NewDependencyHealthRepository.
type DependencyHealthOption func(*dependencyHealth)

// WithDependencyTimeout applies to checks without their own timeout.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(h *dependencyHealth) {
		if timeout > 0 {
			h.fallbackTimeout = timeout
		}
	}
}

// WithDependencyClock overrides time.Now.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(h *dependencyHealth) {
		if clock != nil {
			h.clock = clock
		}
	}
}

type dependencyHealth struct {
	checks          []DependencyCheck
	fallbackTimeout time.Duration
	clock           func() time.Time
}

// NewDependencyHealthRepository returns a HealthRepository that runs every
// check in parallel. Names must be unique and non-blank.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks")
	}
	seen := make(map[string]struct{}, len(checks))
	for _, check := range checks {
		name := strings.TrimSpace(check.Name)
		switch {
		case name == "":
			return nil, errors.New("health: dependency check without a name")
		case check.Check == nil:
			return nil, fmt.Errorf("health: dependency %q has no check func", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("health: dependency %q registered twice", name)
		}
		seen[name] = struct{}{}
	}

	h := &dependencyHealth{
		checks:          append([]DependencyCheck(nil), checks...),
		fallbackTimeout: 1500 * time.Millisecond,
		clock:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

func (h *dependencyHealth) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	outcomes := make([]domain.SystemHealthCheck, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			outcomes[i] = h.run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(outcomes)),
		GeneratedAt: h.clock(),
	}
	for i, outcome := range outcomes {
		report.Checks[strings.TrimSpace(h.checks[i].Name)] = outcome
		if severity(outcome.Status) > severity(report.Status) {
			report.Status = outcome.Status
		}
	}
	return report, nil
}

func (h *dependencyHealth) run(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = h.fallbackTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := h.clock()
	err := check.Check(probeCtx)
	finished := h.clock()
	if err == nil {
		err = probeCtx.Err()
	}

	outcome := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: "ok", Latency: finished.Sub(started), CheckedAt: finished}
	if err == nil {
		return outcome
	}
	outcome.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome.Status, outcome.Detail = domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		outcome.Status, outcome.Detail = domain.HealthStatusError, "cancelled"
	default:
		// An answered probe that errors degrades rather than fails.
		outcome.Status, outcome.Detail = domain.HealthStatusDegraded, err.Error()
	}
	return outcome
}

func severity(status string) int {
	switch status {
	case domain.HealthStatusError:
		return 2
	case domain.HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}
