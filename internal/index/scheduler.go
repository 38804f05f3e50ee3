package index

import (
	"log/slog"
	"time"
)

// startSchedulers launches the two cooperative timers of an online index:
// the commit loop (durably flushes dirty shards every commit period) and
// the refresh loop (makes buffered writes searchable every refresh period).
// Both observe the runtime's cancellation token at each tick; scheduler
// errors are logged and swallowed so the loops survive transient failures.
func startSchedulers(r *Runtime) {
	go commitLoop(r)
	go refreshLoop(r)
}

func commitLoop(r *Runtime) {
	ticker := time.NewTicker(r.setting.CommitPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.shards {
				if !s.HasUncommitted() {
					continue
				}
				if err := s.Commit(); err != nil {
					slog.Warn("scheduled_commit_failed",
						slog.String("index", r.setting.Name),
						slog.Int("shard", s.Number()),
						slog.String("error", err.Error()))
				}
			}
		}
	}
}

func refreshLoop(r *Runtime) {
	ticker := time.NewTicker(r.setting.RefreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.shards {
				if _, err := s.MaybeRefresh(); err != nil {
					slog.Warn("scheduled_refresh_failed",
						slog.String("index", r.setting.Name),
						slog.Int("shard", s.Number()),
						slog.String("error", err.Error()))
				}
			}
		}
	}
}
