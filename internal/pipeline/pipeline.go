package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"chunkcipher/internal/diag"
	"chunkcipher/internal/engine"
	"chunkcipher/pkg/contract"
)

// - 单点并发：文件按 Reader 给出的顺序串行处理；并发只发生在 engine 内部的分片层。
// - 全有或全无：任一分片失败则该文件不写出任何产物，整次运行以首个失败文件的错误结束。
// - 心跳仅用于展示，不参与汇合判定。

// Components 聚合运行所需的组件。
type Components struct {
	Reader     contract.Reader
	Normalizer contract.Normalizer
	Cipher     contract.Cipher
	Writer     contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// 输入根（输出由 Writer 的 options 决定，这里只保留输入）
	Inputs []string
	Mode   contract.CipherMode
	// Workers: 每个文件的分片数 = worker 数。
	Workers int
	// Heartbeat: 等待汇合期间的心跳间隔；<=0 关闭。
	Heartbeat time.Duration
}

// Run 执行完整流水线：Reader → Normalizer → Engine(Cipher) → Writer。
// 每个产物末尾追加一个换行。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}

	rtimer := logger.Start("reader", "iterate")
	files := int64(0)
	fileFailed := false
	err := comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		files++
		if err := perFile(ctx, comp, set, logger, fid, rc); err != nil {
			fileFailed = true
			return err
		}
		return nil
	})
	if err != nil {
		// 单文件内的失败已在 perFile 中记录
		if !fileFailed {
			fail(logger, "reader", "iterate failed", "", err)
		}
		return fmt.Errorf("reader iterate: %w", err)
	}
	rtimer.Finish("iterate", files)
	diag.IncOp("reader", "finish", "success")
	return nil
}

func perFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, fid contract.FileID, rc io.Reader) (err error) {
	id := string(fid)
	fileStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		t.FileStart(id, set.Workers)
	}
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.FileFinish(err == nil, time.Since(fileStart))
		}
	}()

	// 规约
	ntimer := logger.StartWith("normalizer", "normalize", id, "")
	text, err := comp.Normalizer.Normalize(ctx, rc)
	if err != nil {
		fail(logger, "normalizer", "normalize failed", id, err)
		return fmt.Errorf("file %s: normalize: %w", id, err)
	}
	ntimer.Finish("normalize", int64(len(text)))
	diag.IncOp("normalizer", "finish", "success")

	// 分片并发执行
	var done, errs atomic.Int64
	etimer := logger.StartWithKV("engine", "run", id, "", map[string]string{
		"workers": strconv.Itoa(set.Workers),
		"mode":    set.Mode.String(),
		"bytes":   strconv.Itoa(len(text)),
	})
	out, err := engine.Run(ctx, comp.Cipher, set.Mode, text, engine.Options{
		Workers:   set.Workers,
		Heartbeat: set.Heartbeat,
		OnHeartbeat: func(d, total int) {
			if t := diag.GetTerminal(); t != nil {
				t.Heartbeat(d, total)
			}
			logger.Heartbeat("engine", id, d, total)
		},
		OnDone: func(index int, werr error) {
			if werr != nil {
				errs.Add(1)
			}
			n := done.Add(1)
			if t := diag.GetTerminal(); t != nil {
				t.FileProgress(int(n), set.Workers, int(errs.Load()))
			}
			logger.DebugStart("engine", "chunk_done", id, strconv.Itoa(index), nil)
		},
	})
	if err != nil {
		code := diag.RecordError("engine", err)
		logger.ErrorWithKV("engine", string(code), "run failed", &fileStart, id, "", map[string]string{
			"failed_chunks": joinInts(contract.FailedChunks(err)),
			"err":           err.Error(),
		})
		return fmt.Errorf("file %s: engine: %w", id, err)
	}
	etimer.Finish("run", int64(set.Workers))
	diag.IncOp("engine", "finish", "success")

	// 写出
	wtimer := logger.StartWith("writer", "write", id, "")
	if err := comp.Writer.Write(ctx, contract.ArtifactID(fid), strings.NewReader(out+"\n")); err != nil {
		fail(logger, "writer", "write failed", id, err)
		return fmt.Errorf("file %s: writer write: %w", id, err)
	}
	wtimer.Finish("write", int64(len(out)+1))
	diag.IncOp("writer", "finish", "success")
	return nil
}

// fail 记录错误日志与计数。
func fail(logger *diag.Logger, comp, msg, fileID string, err error) {
	code := diag.RecordError(comp, err)
	logger.ErrorWithKV(comp, string(code), msg, nil, fileID, "", map[string]string{"err": err.Error()})
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Normalizer == nil || c.Cipher == nil || c.Writer == nil {
		return fmt.Errorf("%w: pipeline: missing components", contract.ErrConfiguration)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: pipeline: workers must be > 0, got %d", contract.ErrConfiguration, s.Workers)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: pipeline: empty inputs", contract.ErrConfiguration)
	}
	return nil
}
