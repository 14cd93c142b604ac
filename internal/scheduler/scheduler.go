package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner 删除过期调用记录的存储接口
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler 定时清理调用审计日志
type Scheduler struct {
	pruner    Pruner
	interval  time.Duration
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time
	stop      chan struct{}
	done      chan struct{}
	started   bool
}

// New 创建定时清理任务，interval / retention 非正数时使用默认值（1 小时 / 7 天）
func New(pruner Pruner, interval, retention time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		pruner:    pruner,
		interval:  interval,
		retention: retention,
		log:       log,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start 启动定时任务（非阻塞，在后台 goroutine 运行）
func (s *Scheduler) Start() {
	s.started = true
	s.log.Info("journal pruning started", zap.Duration("interval", s.interval), zap.Duration("retention", s.retention))

	go func() {
		defer close(s.done)
		// 启动后立即执行一次
		s.RunOnce(context.Background())
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stop:
				s.log.Info("journal pruning stopped")
				return
			}
		}
	}()
}

// Stop 停止定时任务并等待后台 goroutine 退出
func (s *Scheduler) Stop() {
	close(s.stop)
	if s.started {
		<-s.done
	}
}

// RunOnce 清理一次，返回删除条数
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("journal prune failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("journal pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n
}
