package sendero

import (
	"github.com/robfig/cron/v3"
)

// Janitor is the external scheduler that periodically drives the sweeps the
// cache and queue do not own: idempotency-record expiry and queue retention.
// Jobs run on cron specs (including @every descriptors).
type Janitor struct {
	c      *cron.Cron
	logger Logger
}

// NewJanitor creates a stopped janitor. Register jobs, then call Start.
func NewJanitor(logger Logger) *Janitor {
	return &Janitor{
		c:      cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger: logger,
	}
}

// SweepIdempotency schedules cache sweeps on the given cron spec.
func (j *Janitor) SweepIdempotency(spec string, cache *IdempotencyCache) error {
	_, err := j.c.AddFunc(spec, func() {
		removed := cache.Sweep()
		if removed > 0 && j.logger != nil {
			j.logger.Debug("idempotency sweep", "removed", removed)
		}
	})
	return err
}

// SweepQueue schedules queue retention sweeps on the given cron spec. The
// queue already sweeps after each processing pass; this covers stopped or
// idle queues whose settled items would otherwise linger.
func (j *Janitor) SweepQueue(spec string, queue *Queue) error {
	_, err := j.c.AddFunc(spec, func() {
		queue.sweep()
	})
	return err
}

// Start begins running scheduled jobs in their own goroutine.
func (j *Janitor) Start() {
	j.c.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (j *Janitor) Stop() {
	ctx := j.c.Stop()
	<-ctx.Done()
}
