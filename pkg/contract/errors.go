package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定与退出码映射）。
var (
	// ErrConfiguration: 运行配置非法（如 worker 数 <= 0、未知方向/算法/组件）。致命，不重试。
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidKey: 密钥对所选算法格式非法；仅在工厂构造期返回。
	ErrInvalidKey = errors.New("invalid key")
	// ErrWorkerFailure: 至少一个 worker 的变换调用失败；不产出部分结果。
	ErrWorkerFailure = errors.New("worker failure")
	// ErrInvalidInput: 输入不满足前置条件。
	ErrInvalidInput = errors.New("invalid input")
	// ErrSeqInvalid: 结果槽序列违规（缺位、错位）。
	ErrSeqInvalid = errors.New("sequence invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

// WorkerError 标识单个失败的分片。
// errors.Is(err, ErrWorkerFailure) 对其成立；Unwrap 返回原因。
type WorkerError struct {
	Index int
	Cause error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Cause)
}

func (e *WorkerError) Unwrap() error { return e.Cause }

func (e *WorkerError) Is(target error) bool { return target == ErrWorkerFailure }

// FailedChunks 提取聚合错误中全部失败分片序号（按出现顺序）。
func FailedChunks(err error) []int {
	var out []int
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if we, ok := e.(*WorkerError); ok {
			out = append(out, we.Index)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, x := range u.Unwrap() {
				walk(x)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
