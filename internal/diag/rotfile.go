package diag

import (
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志文件布局：
// - 当前文件固定名：<dir>/chunkcipher.log
// - 超过 logMaxSizeMB 时轮转为 chunkcipher-<UTC 时间戳>.log，最多保留 logMaxBackups 个。
// 目录在首次写入时才创建，未写日志的运行不会留下空目录。
const (
	logFileName   = "chunkcipher.log"
	logMaxSizeMB  = 10
	logMaxBackups = 10
)

// newLogSink 返回按大小轮转的日志文件写入器。
func newLogSink(dir string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}
}
