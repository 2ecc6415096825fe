package match

import (
	"context"

	"github.com/jmehdipour/match-stream/internal/metrics"
	"go.uber.org/zap"
)

// Policy says what happens to a side effect's error.
type Policy int

const (
	// Propagate fails the event: remaining effects are not attempted and the
	// error reaches the coordinator.
	Propagate Policy = iota
	// Suppress logs the error and carries on with the next effect.
	Suppress
)

func (p Policy) String() string {
	if p == Suppress {
		return "suppress"
	}
	return "propagate"
}

// Side-effect names, used as the "effect" log field and metric label.
const (
	EffectHistory     = "history"
	EffectTransaction = "transaction"
	EffectUserCounter = "user_counter"
	EffectJobCounter  = "job_counter"
)

// effectFunc performs one derived write. applied=false means it was a legitimate no-op.
type effectFunc func(ctx context.Context) (applied bool, err error)

// run executes fn and applies policy to its outcome. The returned error is nil
// unless the policy is Propagate.
func run(ctx context.Context, log *zap.Logger, effect string, policy Policy, fn effectFunc) error {
	applied, err := fn(ctx)
	switch {
	case err == nil && applied:
		metrics.SideEffectsTotal.WithLabelValues(effect, "applied").Inc()
		return nil
	case err == nil:
		metrics.SideEffectsTotal.WithLabelValues(effect, "skipped").Inc()
		log.Debug("side effect skipped", zap.String("effect", effect))
		return nil
	case policy == Suppress:
		metrics.SideEffectsTotal.WithLabelValues(effect, "suppressed").Inc()
		log.Warn("side effect failed, continuing", zap.String("effect", effect), zap.Error(err))
		return nil
	default:
		metrics.SideEffectsTotal.WithLabelValues(effect, "failed").Inc()
		return err
	}
}
