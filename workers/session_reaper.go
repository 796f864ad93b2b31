// workers/session_reaper.go
package workers

import (
	"log"
	"time"

	"pong-platform/game"

	"github.com/go-co-op/gocron/v2"
)

// StartSessionReaper schedules a periodic sweep that destroys sessions
// nobody is connected to anymore. The disconnect path already tears
// down ad hoc sessions; the reaper backstops sessions that were
// created but never joined, and paused tournament sessions whose
// players never came back.
func StartSessionReaper(registry *game.Registry, interval, maxIdle time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := registry.Reap(maxIdle); n > 0 {
				log.Printf("[Reaper] removed %d idle sessions, %d live", n, registry.Count())
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
