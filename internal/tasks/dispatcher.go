package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

const (
	defaultMaxRetry = 5
	taskTimeout     = time.Minute
)

// Enqueuer 抽象 *asynq.Client 的入队能力
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher 把房间和云盘的后台副作用投递到 asynq 队列
type Dispatcher struct {
	client Enqueuer
}

// NewDispatcher 创建 Dispatcher 实例
func NewDispatcher(client Enqueuer) *Dispatcher {
	if client == nil {
		panic("Enqueuer cannot be nil for Dispatcher")
	}
	return &Dispatcher{client: client}
}

// RemoveBlobs 投递删除对象的任务
func (d *Dispatcher) RemoveBlobs(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	task, err := NewRemoveBlobsTask(paths)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue("low"))
}

// BanWhiteboard 投递封禁白板的任务
func (d *Dispatcher) BanWhiteboard(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error {
	task, err := NewBanWhiteboardTask(region, whiteboardRoomUUID)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue("default"))
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	opts = append(opts, asynq.MaxRetry(defaultMaxRetry), asynq.Timeout(taskTimeout))
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("asynq: enqueue %s: %w", task.Type(), err)
	}
	logrus.WithFields(logrus.Fields{"task_id": info.ID, "task_type": task.Type(), "queue": info.Queue}).Debug("Task enqueued")
	return nil
}
