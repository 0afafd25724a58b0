package engine

import (
	"fmt"

	"chunkcipher/pkg/contract"
)

// Partition 将 text 划分为 n 个连续分片（无损）。
// - 基础长度为 len(text)/n；余数全部追加到最后一个分片；
// - n <= 0 返回 ErrConfiguration；
// - 空文本得到 n 个空分片；len(text) < n 时前 n-1 个分片为空。
// 分片按字节切分，要求输入为单字节字母表（归一化器保证）。
func Partition(text string, n int) ([]contract.Chunk, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: worker count must be > 0, got %d", contract.ErrConfiguration, n)
	}
	size := len(text) / n
	chunks := make([]contract.Chunk, n)
	for i := 0; i < n; i++ {
		from := i * size
		to := from + size
		if i == n-1 {
			to = len(text)
		}
		chunks[i] = contract.Chunk{Index: i, Text: text[from:to]}
	}
	return chunks, nil
}
