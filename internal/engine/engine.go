package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"chunkcipher/pkg/contract"
)

// - 单点并发：仅此层启动 goroutine；Cipher 实现均为同步、无内部并发。
// - 散射/汇聚：每个分片一个 worker，worker 之间无协调；写目标互不相交，无需加锁。
// - 全量汇合：errgroup.Wait 在全部 N 个 worker 结束后才返回，并建立 happens-before，槽位此后可见。
// - 顺序仅由槽位序号决定，与完成先后无关。

// Options 单次调用的执行参数。
type Options struct {
	// Workers: 分片数 = worker 数（静态配置，不由输入或硬件推导）。必须 > 0。
	Workers int
	// Heartbeat: 等待期间的心跳间隔；<=0 关闭。
	Heartbeat time.Duration
	// OnHeartbeat: 心跳回调（done 为已完成 worker 数）。只读统计，不影响汇合条件。
	OnHeartbeat func(done, total int)
	// OnDone: 单个 worker 结束回调，在该 worker 的 goroutine 中调用，需并发安全。
	OnDone func(index int, err error)
}

// Run 划分 text，按分片并发执行 cipher，汇合后按序装配。
// 任一 worker 失败则跳过装配，返回聚合错误（errors.Join，元素为 *contract.WorkerError），不产出部分结果。
func Run(ctx context.Context, c contract.Cipher, mode contract.CipherMode, text string, opt Options) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: nil cipher", contract.ErrInvalidInput)
	}
	// 分片边界在任何 worker 启动前一次性确定
	chunks, err := Partition(text, opt.Workers)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	slots := make([]contract.Chunk, len(chunks))
	errs := make([]error, len(chunks))
	var done atomic.Int64

	stop := startHeartbeat(opt, &done, len(chunks))
	var g errgroup.Group
	for _, ch := range chunks {
		g.Go(func() error {
			err := apply(ctx, c, mode, ch, &slots[ch.Index])
			errs[ch.Index] = err
			done.Add(1)
			if opt.OnDone != nil {
				opt.OnDone(ch.Index, err)
			}
			return err
		})
	}
	werr := g.Wait()
	stop()

	if werr != nil {
		// 汇报全部失败分片，而不只是首错
		return "", errors.Join(errs...)
	}
	return Assemble(slots)
}

// apply 执行单个分片；panic 视为契约违例，转为 WorkerError。
func apply(ctx context.Context, c contract.Cipher, mode contract.CipherMode, ch contract.Chunk, slot *contract.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &contract.WorkerError{Index: ch.Index, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	if cerr := ctx.Err(); cerr != nil {
		return &contract.WorkerError{Index: ch.Index, Cause: cerr}
	}
	out := ""
	if ch.Text != "" {
		out = c.ApplyCipher(ch.Text, mode)
	}
	*slot = contract.Chunk{Index: ch.Index, Text: out}
	return nil
}

// startHeartbeat 启动心跳协程；返回的 stop 关闭协程并等待其退出。
func startHeartbeat(opt Options, done *atomic.Int64, total int) (stop func()) {
	if opt.Heartbeat <= 0 || opt.OnHeartbeat == nil {
		return func() {}
	}
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		t := time.NewTicker(opt.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				opt.OnHeartbeat(int(done.Load()), total)
			}
		}
	}()
	return func() {
		close(quit)
		<-exited
	}
}
