package migrator

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies one tenant's result in a batch run.
type Outcome string

const (
	OutcomeMigrated     Outcome = "migrated"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
	OutcomeWouldMigrate Outcome = "would-migrate"
)

// Result is one tenant's outcome.
type Result struct {
	Slug       string
	SchemaName string
	Outcome    Outcome
	Reason     string
	Err        error
	// ValidationErr flags a migrated tenant that failed the post-batch
	// isolation check. It does not change the outcome.
	ValidationErr error
}

// Report aggregates a batch run for operator follow-up.
type Report struct {
	Results []Result
	Elapsed time.Duration
	DryRun  bool
}

// Count returns the number of results with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the tenants that failed outright.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// String renders the operator-facing summary.
func (r *Report) String() string {
	var b strings.Builder

	if r.DryRun {
		b.WriteString("dry run: no changes were applied\n")
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-14s %s (schema %s)", res.Outcome, res.Slug, res.SchemaName)
		if res.Reason != "" {
			fmt.Fprintf(&b, ": %s", res.Reason)
		}
		if res.Err != nil {
			fmt.Fprintf(&b, ": %v", res.Err)
		}
		if res.ValidationErr != nil {
			fmt.Fprintf(&b, " [validation: %v]", res.ValidationErr)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "migrated=%d skipped=%d failed=%d elapsed=%s\n",
		r.Count(OutcomeMigrated), r.Count(OutcomeSkipped), r.Count(OutcomeFailed),
		r.Elapsed.Round(time.Millisecond))

	if failures := r.Failures(); len(failures) > 0 {
		b.WriteString("failures requiring follow-up:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s: %v\n", f.Slug, f.Err)
		}
	}

	return b.String()
}
