package diag

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// 进程内最小指标集（并发安全）：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计值与样本数）

type metrics struct {
	mu     sync.Mutex
	ops    map[string]int64
	errs   map[string]int64
	durSum map[string]int64
	durN   map[string]int64
}

var reg = newMetrics()

func newMetrics() *metrics {
	return &metrics{
		ops:    map[string]int64{},
		errs:   map[string]int64{},
		durSum: map[string]int64{},
		durN:   map[string]int64{},
	}
}

func key(parts ...string) string { return strings.Join(parts, "|") }

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	reg.mu.Lock()
	reg.ops[key(comp, stage, result)]++
	reg.mu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	reg.mu.Lock()
	reg.errs[key(comp, code)]++
	reg.mu.Unlock()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	reg.mu.Lock()
	k := key(comp, stage)
	reg.durSum[k] += durMS
	reg.durN[k]++
	reg.mu.Unlock()
}

// RecordError 统一的错误计数入口：op_total{result=error} 与 error_total{code}（unknown 不计入后者）。
func RecordError(comp string, err error) Code {
	code := Classify(err)
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}

// MetricsSnapshot 为某一时刻的指标只读拷贝；键以 "|" 连接标签值。
type MetricsSnapshot struct {
	Ops         map[string]int64
	Errors      map[string]int64
	DurationSum map[string]int64
	DurationN   map[string]int64
}

// SnapshotMetrics 返回当前指标拷贝。
func SnapshotMetrics() MetricsSnapshot {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return MetricsSnapshot{
		Ops:         cloneCounts(reg.ops),
		Errors:      cloneCounts(reg.errs),
		DurationSum: cloneCounts(reg.durSum),
		DurationN:   cloneCounts(reg.durN),
	}
}

// ResetMetrics 清空全部指标（测试与多次运行之间使用）。
func ResetMetrics() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	fresh := newMetrics()
	reg.ops, reg.errs, reg.durSum, reg.durN = fresh.ops, fresh.errs, fresh.durSum, fresh.durN
}

// Flatten 将快照展平为有序键值，便于日志输出。
func (s MetricsSnapshot) Flatten() map[string]string {
	out := make(map[string]string, len(s.Ops)+len(s.Errors))
	put := func(prefix string, m map[string]int64) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[prefix+"{"+k+"}"] = strconv.FormatInt(m[k], 10)
		}
	}
	put("op_total", s.Ops)
	put("error_total", s.Errors)
	put("op_duration_ms_sum", s.DurationSum)
	return out
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
