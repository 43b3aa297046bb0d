// Package runner executes a batch of actions strictly in order, stopping at
// the first failure or at a done action.
package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/action"
	"github.com/xkilldash9x/pagepilot/internal/performer"
	"github.com/xkilldash9x/pagepilot/internal/resolver"
)

// Resolver finds the element an action targets.
type Resolver interface {
	Resolve(ctx context.Context, t action.Target) (resolver.Result, error)
}

// Performer executes one action.
type Performer interface {
	Perform(ctx context.Context, a action.Action, target resolver.Result) (performer.Outcome, error)
}

// Report describes a batch that did not fail.
type Report struct {
	// Message is the text of a done action, or schemas.ActionsCompleted.
	Message string
	// Data is the payload of the last action that produced one.
	Data string
	// Executed counts the actions performed, done included.
	Executed int
	// Done is set when a done action ended the batch.
	Done bool
}

// Runner drives a Resolver and a Performer over a batch.
type Runner struct {
	resolver   Resolver
	performer  Performer
	logger     *zap.Logger
	onNavigate func()
}

// Option configures a Runner.
type Option func(*Runner)

// WithNavigateHook registers fn to run after every action that replaced the
// document.
func WithNavigateHook(fn func()) Option {
	return func(r *Runner) {
		r.onNavigate = fn
	}
}

// New creates a Runner.
func New(res Resolver, perf Performer, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		resolver:  res,
		performer: perf,
		logger:    logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes actions one after another. The first failure stops the batch
// and is returned as an *action.BatchError; the effects of earlier actions
// stay in place. A done action ends the batch successfully.
func (r *Runner) Run(ctx context.Context, actions []action.Action) (Report, error) {
	return r.run(ctx, len(actions), func(pos int) (action.Action, error) {
		return actions[pos], nil
	})
}

// RunDescriptors is Run over wire descriptors. Each descriptor is decoded
// right before it runs, so a malformed one fails at its own position after
// the actions ahead of it took effect.
func (r *Runner) RunDescriptors(ctx context.Context, ds []schemas.ActionDescriptor) (Report, error) {
	return r.run(ctx, len(ds), func(pos int) (action.Action, error) {
		return action.Decode(ds[pos])
	})
}

func (r *Runner) run(ctx context.Context, n int, next func(pos int) (action.Action, error)) (Report, error) {
	report := Report{Message: schemas.ActionsCompleted}

	for pos := 0; pos < n; pos++ {
		a, err := next(pos)
		if err != nil {
			return report, r.abort(pos, a, err)
		}
		if err := ctx.Err(); err != nil {
			return report, r.abort(pos, a, err)
		}

		out, err := r.step(ctx, a)
		if err != nil {
			return report, r.abort(pos, a, err)
		}
		report.Executed++
		if out.Data != "" {
			report.Data = out.Data
		}
		if out.Navigated && r.onNavigate != nil {
			r.onNavigate()
		}
		if out.Done {
			report.Message = out.Message
			report.Done = true
			if skipped := n - pos - 1; skipped > 0 {
				r.logger.Debug("Done action reached, skipping the rest of the batch.", zap.Int("skipped", skipped))
			}
			return report, nil
		}
	}
	return report, nil
}

func (r *Runner) step(ctx context.Context, a action.Action) (performer.Outcome, error) {
	var target resolver.Result
	if t, ok := action.TargetOf(a); ok && !t.IsZero() {
		res, err := r.resolver.Resolve(ctx, t)
		if err != nil {
			if _, verify := a.(action.Verify); verify && errors.Is(err, action.ErrElementNotFound) {
				err = fmt.Errorf("%w: %s", action.ErrVerificationFailed, err.Error())
			}
			return performer.Outcome{}, action.Wrap(a, err)
		}
		target = res
	}
	return r.performer.Perform(ctx, a, target)
}

func (r *Runner) abort(pos int, a action.Action, err error) error {
	meta := a.Meta()
	r.logger.Warn("Action failed, aborting batch.",
		zap.String("action_id", meta.ID),
		zap.String("action_type", string(meta.Type)),
		zap.Int("position", pos),
		zap.String("kind", action.KindOf(err)),
		zap.Error(err),
	)
	return &action.BatchError{Position: pos, ActionID: meta.ID, Err: action.Wrap(a, err)}
}

// Outcome converts a Run result into the caller-facing form.
func Outcome(report Report, err error) schemas.ExecutionOutcome {
	if err == nil {
		return schemas.ExecutionOutcome{Success: true, Message: report.Message, Data: report.Data}
	}
	out := schemas.ExecutionOutcome{
		Success: false,
		Kind:    action.KindOf(err),
		Error:   err.Error(),
		Data:    report.Data,
	}
	var be *action.BatchError
	if errors.As(err, &be) {
		out.Position = be.Position
		out.ActionID = be.ActionID
	}
	var ae *action.ActionError
	if errors.As(err, &ae) {
		out.ActionType = ae.Type
		out.Message = ae.Err.Error()
	}
	return out
}
