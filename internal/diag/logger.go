package diag

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化事件日志器：zap JSON 编码，单行一事件。
// 事件字段固定：level/ts/corr_id/comp/stage/code/dur_ms/count/file_id/chunk/msg/kv。
// nil *Logger 的全部方法均为 no-op，调用方无需判空。
type Logger struct {
	z    *zap.Logger
	sink io.Closer
}

// NewLogger 按 level 初始化，日志写入 dir（为空时默认 logs），10MiB 轮转。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	sink := newLogSink(dir)
	l := NewLoggerTo(corrID, level, zapcore.AddSync(sink))
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入任意 WriteSyncer（测试或 stderr）。
func NewLoggerTo(corrID, level string, ws zapcore.WriteSyncer) *Logger {
	if ws == nil {
		ws = zapcore.Lock(os.Stderr)
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		LevelKey:       "level",
		TimeKey:        "ts",
		MessageKey:     "msg",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	core := zapcore.NewCore(enc, ws, parseLevel(level))
	// sink 写失败时回退到 stderr
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))).With(zap.String("corr_id", corrID))
	return &Logger{z: z}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error|heartbeat
	Code   string
	Dur    time.Duration
	Count  int64
	FileID string
	Chunk  string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv zapcore.Level, ev Event) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv, ev.Msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields, zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.Dur > 0 {
		fields = append(fields, zap.Duration("dur_ms", ev.Dur))
	}
	if ev.Count != 0 {
		fields = append(fields, zap.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		fields = append(fields, zap.String("file_id", ev.FileID))
	}
	if ev.Chunk != "" {
		fields = append(fields, zap.String("chunk", ev.Chunk))
	}
	if len(ev.KV) > 0 {
		fields = append(fields, zap.Any("kv", ev.KV))
	}
	ce.Write(fields...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/chunk 的 start。
func (l *Logger) StartWith(comp, msg, fileID, chunk string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Chunk: chunk, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, chunk: chunk, t0: time.Now()}
}

// StartWithKV 记录带 file_id/chunk 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID, chunk string, kv map[string]string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Chunk: chunk, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, chunk: chunk, t0: time.Now()}
}

// Error 记录 error 事件（不采样）。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 file_id/chunk。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, chunk string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, chunk, nil)
}

// ErrorWithKV 支持附带键值对（例如失败分片序号）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, chunk string, kv map[string]string) {
	var dur time.Duration
	if durSince != nil {
		dur = time.Since(*durSince)
	}
	l.log(zapcore.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, Dur: dur, Msg: msg, FileID: fileID, Chunk: chunk, KV: kv})
}

// Warn 记录告警事件。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(zapcore.WarnLevel, Event{Comp: comp, Stage: "warn", Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "finish", Dur: time.Since(start), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, chunk string, kv map[string]string) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Chunk: chunk, Msg: msg, KV: kv})
}

// Heartbeat 记录等待期间的存活事件（debug 级）。
func (l *Logger) Heartbeat(comp, fileID string, done, total int) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "heartbeat", FileID: fileID, Count: int64(done), Msg: "processing",
		KV: map[string]string{"total": strconv.Itoa(total)}})
}

// Close 刷新缓冲并关闭日志文件句柄。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	err := l.z.Sync()
	if l.sink != nil {
		if cerr := l.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	chunk  string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0)
	t.l.log(zapcore.InfoLevel, Event{Comp: t.comp, Stage: "finish", Dur: d, Count: count, FileID: t.fileID, Chunk: t.chunk, Msg: msg})
	ObserveDuration(t.comp, "finish", d.Milliseconds())
}
