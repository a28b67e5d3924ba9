package job

import (
	"context"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/repo"
)

// GenerationReconcileJob sweeps outputs stuck in GENERATING. A crashed
// worker or an abandoned request leaves the claim behind; once it is older
// than the timeout the output is failed so it can be regenerated.
type GenerationReconcileJob struct {
	outputs        *repo.OutputRepo
	timeoutSeconds int64
}

func NewGenerationReconcileJob(outputs *repo.OutputRepo, timeoutSeconds int64) *GenerationReconcileJob {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 900
	}
	return &GenerationReconcileJob{outputs: outputs, timeoutSeconds: timeoutSeconds}
}

func (j *GenerationReconcileJob) Name() string {
	return "generation_reconcile"
}

func (j *GenerationReconcileJob) Run(ctx context.Context) error {
	now := timeutil.NowUnix()
	cutoff := now - j.timeoutSeconds
	swept, err := j.outputs.FailStaleGenerating(ctx, cutoff, "generation timed out", now)
	if err != nil {
		return err
	}
	if swept > 0 {
		logutil.GetLogger(ctx).Info("stale generations failed", zap.Int64("count", swept))
	}
	return nil
}
