package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/repository"
)

const sweepTimeout = 30 * time.Second

// LivenessJob periodically demotes active robots that have stopped sending
// telemetry. It performs no other transition and never deletes anything.
type LivenessJob struct {
	robotRepo repository.RobotRepository
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	done      chan struct{}
}

func NewLivenessJob(robotRepo repository.RobotRepository, interval, threshold time.Duration) *LivenessJob {
	return &LivenessJob{
		robotRepo: robotRepo,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

func (j *LivenessJob) Start() {
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("threshold", j.threshold).
		Msg("liveness sweeper started")
}

func (j *LivenessJob) Stop() {
	close(j.done)
	log.Info().Msg("liveness sweeper stopped")
}

func (j *LivenessJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep runs one demotion cycle. Errors are logged, never raised: a failed
// cycle must not take the scheduler down with it.
func (j *LivenessJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	threshold := j.now().Add(-j.threshold)

	demoted, err := j.robotRepo.MarkInactiveSince(ctx, threshold)
	if err != nil {
		log.Error().Err(err).Msg("liveness sweep failed")
		return
	}

	for _, robot := range demoted {
		log.Info().
			Str("robotId", robot.ID).
			Str("name", robot.Name).
			Msg("robot marked inactive")
	}
}
