package stdout

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"chunkcipher/pkg/contract"
)

// Options 为 stdout Writer 的可选配置。
type Options struct {
	// BufSize: 写缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Stdout 将产物依次写到标准输出；产物之间不插入分隔。
type Stdout struct {
	mu      sync.Mutex
	w       io.Writer
	bufSize int
}

// New 创建写往 os.Stdout 的 Writer。
func New(opts *Options) *Stdout {
	return NewTo(os.Stdout, opts)
}

// NewTo 写往任意 io.Writer（测试用）。
func NewTo(w io.Writer, opts *Options) *Stdout {
	b := 64 * 1024
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &Stdout{w: w, bufSize: b}
}

var _ contract.Writer = (*Stdout)(nil)

// Write 拷贝 r 到输出；并发调用按整产物串行化。
func (s *Stdout) Write(ctx context.Context, _ contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bw := bufio.NewWriterSize(s.w, s.bufSize)
	if _, err := io.Copy(bw, r); err != nil {
		return err
	}
	return bw.Flush()
}
