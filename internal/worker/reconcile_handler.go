package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// UsageReconciler 按实际文件重新计算已用空间
type UsageReconciler interface {
	ReconcileUsage(ctx context.Context) (int, error)
}

// ReconcileUsageHandler 处理周期性的用量对账任务
type ReconcileUsageHandler struct {
	reconciler UsageReconciler
}

// NewReconcileUsageHandler 创建 Handler 实例
func NewReconcileUsageHandler(reconciler UsageReconciler) *ReconcileUsageHandler {
	if reconciler == nil {
		panic("UsageReconciler cannot be nil for ReconcileUsageHandler")
	}
	return &ReconcileUsageHandler{reconciler: reconciler}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *ReconcileUsageHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	logCtx.Debug("Running usage reconciliation...")

	fixed, err := h.reconciler.ReconcileUsage(ctx)
	if err != nil {
		logCtx.WithError(err).WithField("fixed", fixed).Error("Usage reconciliation failed")
		return fmt.Errorf("reconcile usage: %w", err)
	}
	if fixed > 0 {
		logCtx.WithField("fixed", fixed).Warn("Usage counters repaired")
	}
	return nil
}
