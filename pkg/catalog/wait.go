package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

const maxWaitMs = 600000

func newWaitDescriptor() *Descriptor {
	return &Descriptor{
		Kind:      KindWait,
		Output:    OutputNone,
		Cacheable: cacheableNever,
		Validate:  validateWaitArgs,
		Execute:   executeWait,
	}
}

func validateWaitArgs(args map[string]any) []domain.Issue {
	n, ok := toNumber(args["duration"])
	if !ok || n < 0 || n > maxWaitMs {
		return []domain.Issue{structureIssueWithHint(
			fmt.Sprintf("invalid duration %v", args["duration"]),
			fmt.Sprintf("duration must be an integer between 0 and %d milliseconds", maxWaitMs))}
	}
	return nil
}

// executeWait suspends for the requested duration, honouring cancellation
// promptly. Wait(0) returns without sleeping.
func executeWait(ctx context.Context, _ Env, args map[string]any) (any, error) {
	duration, derr := argNumber(args, "duration")
	if derr != nil {
		return nil, derr
	}
	if duration < 0 || duration > maxWaitMs {
		return nil, domain.NewValidationError(
			fmt.Sprintf("duration must be between 0 and %d milliseconds", maxWaitMs))
	}
	if duration == 0 {
		return map[string]any{"waitedMs": float64(0)}, nil
	}

	timer := time.NewTimer(time.Duration(duration) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, domain.NewCancellationError("wait cancelled")
	case <-timer.C:
		return map[string]any{"waitedMs": duration}, nil
	}
}
