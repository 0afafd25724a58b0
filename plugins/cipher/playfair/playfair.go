package playfair

import (
	"fmt"
	"strings"

	"chunkcipher/pkg/contract"
)

const gridSize = 5

type coord struct{ row, col int }

// Cipher: Playfair 双字母替换。5×5 方阵由密钥字母（去重）后接剩余字母构成，J 并入 I。
// 注意：双字母配对跨越分片边界，分片执行结果与整串执行可能不同；填充字母不会在解密时移除。
type Cipher struct {
	grid [gridSize * gridSize]byte
	pos  [26]coord
}

// New 从密钥构造：密钥先转大写，必须只含字母；空密钥得到字母序方阵。
func New(key string) (*Cipher, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for i := 0; i < len(key); i++ {
		if key[i] < 'A' || key[i] > 'Z' {
			return nil, fmt.Errorf("%w: playfair key %q must contain letters only", contract.ErrInvalidKey, key)
		}
	}
	c := &Cipher{}
	var seen [26]bool
	n := 0
	place := func(ch byte) {
		if ch == 'J' {
			ch = 'I'
		}
		if seen[ch-'A'] {
			return
		}
		seen[ch-'A'] = true
		c.grid[n] = ch
		c.pos[ch-'A'] = coord{row: n / gridSize, col: n % gridSize}
		n++
	}
	for i := 0; i < len(key); i++ {
		place(key[i])
	}
	for ch := byte('A'); ch <= 'Z'; ch++ {
		place(ch)
	}
	// J 与 I 共用同一格
	c.pos['J'-'A'] = c.pos['I'-'A']
	return c, nil
}

// Grid 返回方阵的行主序表示（仅用于诊断与测试）。
func (c *Cipher) Grid() string { return string(c.grid[:]) }

func (c *Cipher) ApplyCipher(text string, mode contract.CipherMode) string {
	pairs := digraphs(clean(text), mode == contract.Encrypt)
	if len(pairs) == 0 {
		return ""
	}
	step := 1
	if mode == contract.Decrypt {
		step = gridSize - 1
	}
	out := make([]byte, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		a, b := c.pos[pairs[i]-'A'], c.pos[pairs[i+1]-'A']
		switch {
		case a.row == b.row:
			a.col = (a.col + step) % gridSize
			b.col = (b.col + step) % gridSize
		case a.col == b.col:
			a.row = (a.row + step) % gridSize
			b.row = (b.row + step) % gridSize
		default:
			a.col, b.col = b.col, a.col
		}
		out = append(out, c.at(a), c.at(b))
	}
	return string(out)
}

func (c *Cipher) at(p coord) byte { return c.grid[p.row*gridSize+p.col] }

// clean 仅保留字母（转大写），J→I。
func clean(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			continue
		}
		if ch == 'J' {
			ch = 'I'
		}
		out = append(out, ch)
	}
	return out
}

// digraphs 组成偶数长度的双字母序列。
// split=true（加密）时同字母对之间插入 X（XX 插入 Q）；奇数长度末尾补 Z（末字母为 Z 时补 X）。
// 解密不拆分同字母对，仅为保持全定义而补齐奇数长度。
func digraphs(s []byte, split bool) []byte {
	out := make([]byte, 0, len(s)+len(s)/2+1)
	for i := 0; i < len(s); {
		a := s[i]
		if i+1 >= len(s) {
			out = append(out, a, padFor(a))
			break
		}
		b := s[i+1]
		if split && a == b {
			out = append(out, a, fillerFor(a))
			i++
			continue
		}
		out = append(out, a, b)
		i += 2
	}
	return out
}

func fillerFor(ch byte) byte {
	if ch == 'X' {
		return 'Q'
	}
	return 'X'
}

func padFor(ch byte) byte {
	if ch == 'Z' {
		return 'X'
	}
	return 'Z'
}

var _ contract.Cipher = (*Cipher)(nil)
