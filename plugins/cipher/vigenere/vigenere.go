package vigenere

import (
	"fmt"
	"strings"

	"chunkcipher/pkg/contract"
	"chunkcipher/plugins/cipher/caesar"
)

// Cipher: 维吉尼亚密码。每个密钥字母选择一个凯撒移位（A=0）；
// 密钥流仅在字母上前进，且每次 ApplyCipher 从密钥首位重新开始。
// 注意：分片执行时每个分片各自从密钥首位开始，结果与整串执行可能不同。
type Cipher struct {
	shifts []int
}

// New 从密钥构造：密钥先转大写，必须只含字母；空密钥等价于恒等变换。
func New(key string) (*Cipher, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	shifts := make([]int, 0, len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch < 'A' || ch > 'Z' {
			return nil, fmt.Errorf("%w: vigenere key %q must contain letters only", contract.ErrInvalidKey, key)
		}
		shifts = append(shifts, int(ch-'A'))
	}
	if len(shifts) == 0 {
		shifts = []int{0}
	}
	return &Cipher{shifts: shifts}, nil
}

func (c *Cipher) ApplyCipher(text string, mode contract.CipherMode) string {
	if text == "" {
		return ""
	}
	b := []byte(text)
	k := 0
	for i, ch := range b {
		if ch < 'A' || ch > 'Z' {
			continue
		}
		d := c.shifts[k%len(c.shifts)]
		if mode == contract.Decrypt {
			d = (26 - d) % 26
		}
		b[i] = caesar.Rotate(ch, d)
		k++
	}
	return string(b)
}

var _ contract.Cipher = (*Cipher)(nil)
