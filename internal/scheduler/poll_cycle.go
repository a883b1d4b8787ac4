package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/pipeline"
)

// PollCycleJob runs the ingestion pipeline on its schedule. The cycle
// handles its own overlap skipping and failure recovery; this wrapper
// only gives it a place on the cron table.
type PollCycleJob struct {
	log   zerolog.Logger
	cycle *pipeline.Cycle
}

// NewPollCycleJob creates a poll cycle job
func NewPollCycleJob(log zerolog.Logger, cycle *pipeline.Cycle) *PollCycleJob {
	return &PollCycleJob{
		log:   log.With().Str("job", "poll_cycle").Logger(),
		cycle: cycle,
	}
}

// Name returns the job name
func (j *PollCycleJob) Name() string {
	return "poll_cycle"
}

// Run executes one poll cycle
func (j *PollCycleJob) Run() error {
	return j.cycle.Run()
}
