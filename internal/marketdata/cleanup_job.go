package marketdata

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired cache entries. Historical samples are never
// pruned. Scheduled daily.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "marketdata_cleanup").Logger(),
	}
}

// Run deletes all expired cache entries.
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteExpired(time.Now())
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired cache entries")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "marketdata_cleanup"
}
