package caesar

import (
	"fmt"
	"strconv"
	"strings"

	"chunkcipher/pkg/contract"
)

const alphabetSize = 26

// Cipher: 凯撒移位。按字符独立变换（上下文无关），因此分片执行与整串执行结果一致。
type Cipher struct {
	shift int
}

// New 从密钥构造：密钥为空表示移位 0；否则必须为非负十进制整数。
func New(key string) (*Cipher, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return &Cipher{}, nil
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: caesar key %q must be a non-negative integer", contract.ErrInvalidKey, key)
		}
	}
	// 只关心模 26 的余数；逐位取模避免超长数字溢出
	shift := 0
	for _, r := range key {
		shift = (shift*10 + int(r-'0')) % alphabetSize
	}
	return &Cipher{shift: shift}, nil
}

// Shift 返回归约后的移位量（0..25）。
func (c *Cipher) Shift() int { return c.shift }

// ApplyCipher: A-Z 按方向移位，其它字节原样透传。
func (c *Cipher) ApplyCipher(text string, mode contract.CipherMode) string {
	if text == "" {
		return ""
	}
	d := c.shift
	if mode == contract.Decrypt {
		d = (alphabetSize - d) % alphabetSize
	}
	b := []byte(text)
	for i, ch := range b {
		b[i] = Rotate(ch, d)
	}
	return string(b)
}

// Rotate 将大写字母 ch 右移 d 位（d 取 0..25）；非大写字母原样返回。
func Rotate(ch byte, d int) byte {
	if ch < 'A' || ch > 'Z' {
		return ch
	}
	return byte('A' + (int(ch-'A')+d)%alphabetSize)
}

// String 便于调试输出。
func (c *Cipher) String() string { return "caesar(" + strconv.Itoa(c.shift) + ")" }

var _ contract.Cipher = (*Cipher)(nil)
