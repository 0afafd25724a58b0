package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chunkcipher/pkg/contract"
	"chunkcipher/plugins/cipher/caesar"
	"chunkcipher/plugins/cipher/playfair"
	"chunkcipher/plugins/cipher/vigenere"
	ntr "chunkcipher/plugins/normalizer/translit"
	rfs "chunkcipher/plugins/reader/filesystem"
	wfs "chunkcipher/plugins/writer/filesystem"
	wso "chunkcipher/plugins/writer/stdout"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
	}
	return nil
}

// NewCipher 工厂签名：接收原样密钥，密钥校验由算法自身负责。
type NewCipher func(key string) (contract.Cipher, error)

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewNormalizer 工厂签名：接收原样 JSON Options。
type NewNormalizer func(raw json.RawMessage) (contract.Normalizer, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Cipher 算法注册表（显式、零反射）。
var Cipher = map[contract.CipherType]NewCipher{
	contract.Caesar:   func(key string) (contract.Cipher, error) { return caesar.New(key) },
	contract.Playfair: func(key string) (contract.Cipher, error) { return playfair.New(key) },
	contract.Vigenere: func(key string) (contract.Cipher, error) { return vigenere.New(key) },
}

// BuildCipher 按类型与密钥构造 Cipher；未知类型与非法密钥均包装 ErrInvalidKey。
// 构造在任何分片处理之前完成，失败即不会进入执行引擎。
func BuildCipher(t contract.CipherType, key string) (contract.Cipher, error) {
	f, ok := Cipher[t]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported cipher %s", contract.ErrInvalidKey, t)
	}
	c, err := f(key)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", t, err)
	}
	return c, nil
}

// Reader 工厂注册表。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Normalizer 工厂注册表。
var Normalizer = map[string]NewNormalizer{
	// translit: 字母大写、数字转英文单词、其余丢弃
	"translit": func(raw json.RawMessage) (contract.Normalizer, error) {
		var opts ntr.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ntr.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（输出目录或单一文件，覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	"stdout": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wso.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wso.New(&opts), nil
	},
}
