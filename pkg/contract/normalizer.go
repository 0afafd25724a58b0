package contract

import (
	"context"
	"io"
)

// Normalizer: 将原始字节流归一为密码算法可接受的字母表。
// 约束：
//  1. 输出仅含单字节字符（ASCII），保证按字节切分不会破坏字符；
//  2. 纯计算、幂等，无内部并发；
//  3. 读取失败原样上抛。
type Normalizer interface {
	Normalize(ctx context.Context, r io.Reader) (string, error)
}
