package policies

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/types"
)

// Engine runs policies strictly in declaration order.
type Engine struct {
	policies []Policy
}

func NewEngine(policies []Policy) *Engine {
	return &Engine{policies: policies}
}

// Apply stops at the first failing policy; the failure (or panic) is logged
// as KRB2002 with the policy's name and the remaining policies are skipped.
// Edits already recorded stay in pc.Edits.
func (e *Engine) Apply(ctx context.Context, pc *Context) error {
	for i, policy := range e.policies {
		if err := ctx.Err(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeCanceled).
				WithMsg("policy pipeline canceled").
				WithCause(err)
		}
		log.Ctx(ctx).Debug().Str("policy", policy.Name()).Int("index", i).Msg("applying policy")
		if err := applyPolicy(ctx, policy, pc); err != nil {
			msg := fmt.Sprintf("policy %s failed: %v", policy.Name(), err)
			pc.Logger.LogError(types.CodePolicyFailed, "", msg)
			return errbuilder.New().
				WithCode(errbuilder.CodeAborted).
				WithMsg(fmt.Sprintf("policy %s failed; %d remaining policies skipped", policy.Name(), len(e.policies)-i-1)).
				WithCause(err)
		}
	}
	return nil
}

func applyPolicy(ctx context.Context, policy Policy, pc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return policy.Apply(ctx, pc)
}
