package contract

import (
	"fmt"
	"strings"
)

// CipherMode: 运算方向（加密/解密），不可变值。
type CipherMode int

const (
	Encrypt CipherMode = iota
	Decrypt
)

func (m CipherMode) String() string {
	switch m {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("CipherMode(%d)", int(m))
	}
}

// ParseCipherMode 解析方向名称（大小写不敏感）；未知名称返回 ErrConfiguration。
func ParseCipherMode(s string) (CipherMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "encrypt":
		return Encrypt, nil
	case "decrypt":
		return Decrypt, nil
	default:
		return Encrypt, fmt.Errorf("%w: unknown cipher mode %q", ErrConfiguration, s)
	}
}

// CipherType: 算法选择，不可变值。
type CipherType int

const (
	Caesar CipherType = iota
	Playfair
	Vigenere
)

func (t CipherType) String() string {
	switch t {
	case Caesar:
		return "caesar"
	case Playfair:
		return "playfair"
	case Vigenere:
		return "vigenere"
	default:
		return fmt.Sprintf("CipherType(%d)", int(t))
	}
}

// ParseCipherType 解析算法名称（大小写不敏感）；未知名称返回 ErrConfiguration。
func ParseCipherType(s string) (CipherType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "caesar":
		return Caesar, nil
	case "playfair":
		return Playfair, nil
	case "vigenere":
		return Vigenere, nil
	default:
		return Caesar, fmt.Errorf("%w: unknown cipher type %q", ErrConfiguration, s)
	}
}

// Cipher: 所有具体算法共同满足的唯一运算契约。
// 约束：
//  1. 除自身密钥外无其它状态依赖（纯函数）；
//  2. 对归一化后的输入字母表全定义，调用期永不失败（失败只发生在构造期，由工厂返回）；
//  3. 构造后只读，可被多个 worker 并发共享；
//  4. 引擎只依赖本接口，不检查具体实现类型。
type Cipher interface {
	ApplyCipher(text string, mode CipherMode) string
}
