package translit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"chunkcipher/pkg/contract"
)

// Options: 数字处理策略。
type Options struct {
	// Digits: "words"（默认，0-9 转为英文单词大写）| "drop"（丢弃）。
	Digits string `json:"digits"`
	// BufSize: 读缓冲区大小（字节）；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size"`
}

var digitWords = [10]string{"ZERO", "ONE", "TWO", "THREE", "FOUR", "FIVE", "SIX", "SEVEN", "EIGHT", "NINE"}

// Translit 将输入规约到 A-Z：字母转大写，数字按策略展开，其余字节丢弃。
type Translit struct {
	dropDigits bool
	bufSize    int
}

// New 创建规约器；未知 digits 策略返回 ErrConfiguration。
func New(opts *Options) (*Translit, error) {
	t := &Translit{bufSize: 64 * 1024}
	if opts == nil {
		return t, nil
	}
	switch strings.ToLower(strings.TrimSpace(opts.Digits)) {
	case "", "words":
	case "drop":
		t.dropDigits = true
	default:
		return nil, fmt.Errorf("%w: normalizer digits %q", contract.ErrConfiguration, opts.Digits)
	}
	if opts.BufSize > 0 {
		t.bufSize = opts.BufSize
	}
	return t, nil
}

var _ contract.Normalizer = (*Translit)(nil)

// Normalize 读取 r 的全部字节并返回规约后的文本。
// 输出仅含 'A'..'Z'；多字节字符的每个字节均非 ASCII 字母，整体被丢弃。
func (t *Translit) Normalize(ctx context.Context, r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, t.bufSize)
	var sb strings.Builder
	buf := make([]byte, t.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := br.Read(buf)
		for _, b := range buf[:n] {
			t.appendByte(&sb, b)
		}
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Text 为纯字符串版本，便于库调用与测试。
func (t *Translit) Text(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		t.appendByte(&sb, s[i])
	}
	return sb.String()
}

func (t *Translit) appendByte(sb *strings.Builder, b byte) {
	switch {
	case b >= 'A' && b <= 'Z':
		sb.WriteByte(b)
	case b >= 'a' && b <= 'z':
		sb.WriteByte(b - 'a' + 'A')
	case b >= '0' && b <= '9':
		if !t.dropDigits {
			sb.WriteString(digitWords[b-'0'])
		}
	}
}
