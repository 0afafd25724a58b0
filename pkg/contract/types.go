package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Chunk: 输入文本的一个连续片段，携带其在划分中的原始位置（0..N-1）。
// 同一形状也用作结果槽：Index 为槽位，Text 为该槽位的变换结果。
// 约束：
// - 同一次划分内 Index 自 0 连续递增；
// - 按 Index 顺序拼接全部 Text 必须逐字节还原原始输入（不丢失、不重复、不重排）。
type Chunk struct {
	Index int
	Text  string
}
