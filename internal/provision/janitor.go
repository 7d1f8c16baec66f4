package provision

import (
	"time"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
	"github.com/robfig/cron/v3"
)

// Janitor periodically drops sessions nobody has touched for longer
// than the TTL, so an abandoned flow doesn't hold its slot forever.
type Janitor struct {
	machine *Machine
	ttl     time.Duration
	cron    *cron.Cron
}

// NewJanitor sweeps m every minute, expiring sessions idle past ttl.
func NewJanitor(m *Machine, ttl time.Duration) *Janitor {
	return &Janitor{
		machine: m,
		ttl:     ttl,
		cron:    cron.New(),
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("* * * * *", j.Sweep); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}

// Sweep expires every idle session. Each candidate is re-checked under
// its user's lock so a step that is mid-flight wins over expiry.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.ttl)

	j.machine.mu.Lock()
	var candidates []string
	for userID, s := range j.machine.sessions {
		if s.UpdatedAt.Before(cutoff) {
			candidates = append(candidates, userID)
		}
	}
	j.machine.mu.Unlock()

	for _, userID := range candidates {
		lock := j.machine.userLock(userID)
		lock.Lock()
		s := j.machine.getSession(userID)
		if s == nil || !s.UpdatedAt.Before(cutoff) {
			lock.Unlock()
			continue
		}
		j.machine.deleteSession(userID)
		lock.Unlock()

		logger.Info("[Provision] expired idle session for %s (attempt %s)", userID, s.AttemptID)
		j.machine.reporter.Expired(userID)
	}
}
