package engine

import (
	"strings"

	"chunkcipher/pkg/contract"
)

// Assemble 按槽位序号严格升序拼接结果；不做任何密码运算。
// 槽位 i 的 Index 必须等于 i，否则返回 ErrSeqInvalid（缺位/错位/重复）。
func Assemble(slots []contract.Chunk) (string, error) {
	total := 0
	for i, s := range slots {
		if s.Index != i {
			return "", contract.ErrSeqInvalid
		}
		total += len(s.Text)
	}
	var sb strings.Builder
	sb.Grow(total)
	for _, s := range slots {
		sb.WriteString(s.Text)
	}
	return sb.String(), nil
}
