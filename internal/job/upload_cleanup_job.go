package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/service"
)

// UploadCleanupJob drops presigned upload sessions whose URL expired
// before the client ever confirmed.
type UploadCleanupJob struct {
	uploads *service.UploadService
}

func NewUploadCleanupJob(uploads *service.UploadService) *UploadCleanupJob {
	return &UploadCleanupJob{uploads: uploads}
}

func (j *UploadCleanupJob) Name() string {
	return "upload_session_cleanup"
}

func (j *UploadCleanupJob) Run(ctx context.Context) error {
	removed, err := j.uploads.CleanupExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired upload sessions removed", zap.Int64("count", removed))
	}
	return nil
}
