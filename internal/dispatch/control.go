package dispatch

import "context"

// Pause stops ClaimNext from handing out tasks. Agents learn about it from
// their next heartbeat.
func (e *Engine) Pause(ctx context.Context) error {
	if err := e.repo.SetPaused(ctx, true); err != nil {
		return err
	}
	e.log(ctx).Warn("dispatch paused")
	return nil
}

// Resume lifts a pause.
func (e *Engine) Resume(ctx context.Context) error {
	if err := e.repo.SetPaused(ctx, false); err != nil {
		return err
	}
	e.log(ctx).Info("dispatch resumed")
	return nil
}

// Paused reports the global pause flag.
func (e *Engine) Paused(ctx context.Context) (bool, error) {
	return e.repo.Paused(ctx)
}
