package upload

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	stepExecutionIDEnvKey = "BITRISE_STEP_EXECUTION_ID"
	stepExecutionID       = "step_execution_id"
)

type trackerFactory func(logger log.Logger, properties ...analytics.Properties) analytics.Tracker

type uploadTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newUploadTracker(envRepo env.Repository, logger log.Logger, factory trackerFactory) uploadTracker {
	p := analytics.Properties{
		"build_slug":  envRepo.Get("BITRISE_BUILD_SLUG"),
		"app_slug":    envRepo.Get("BITRISE_APP_SLUG"),
		"workflow":    envRepo.Get("BITRISE_TRIGGERED_WORKFLOW_ID"),
		"is_pr_build": envRepo.Get("IS_PR") == "true",
	}
	if id := envRepo.Get(stepExecutionIDEnvKey); id != "" {
		p[stepExecutionID] = id
	}
	return uploadTracker{
		tracker: factory(logger, p),
		logger:  logger,
	}
}

func (t *uploadTracker) logUploadCompleted(uploadTime time.Duration, size int64, chunkSize int64, chunkCount int64, resumed bool) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": size,
		"chunk_size_bytes":  chunkSize,
		"chunk_count":       chunkCount,
		"resumed":           resumed,
	}
	t.tracker.Enqueue("tus_upload_completed", properties)
}

func (t *uploadTracker) logUploadFailed(uploadTime time.Duration, offset int64, reason string) {
	properties := analytics.Properties{
		"upload_time_s": uploadTime.Truncate(time.Second).Seconds(),
		"offset_bytes":  offset,
		"reason":        reason,
	}
	t.tracker.Enqueue("tus_upload_failed", properties)
}

func (t *uploadTracker) wait() {
	t.tracker.Wait()
}
