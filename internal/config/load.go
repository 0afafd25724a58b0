package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"chunkcipher/pkg/contract"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 算法默认 caesar；密钥无默认（空密钥按各算法语义处理）。
func Defaults() Config {
	return Config{
		Workers:     Int(4),
		Mode:        contract.Encrypt.String(),
		Cipher:      Cipher{Type: contract.Caesar.String()},
		HeartbeatMS: Int(1000),
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:     "fs",
			Normalizer: "translit",
			Writer:     "stdout",
		},
	}
}

// Format 为配置文件格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf 按扩展名判定格式；未知扩展名按 JSON 处理。
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Load 从文件路径或原始内容解析 Config（严格拒绝未知字段）。
// raw 非空时优先生效，格式由 path 的扩展名决定（path 为空时按 JSON）。
func Load(path string, raw []byte) (Config, error) {
	switch {
	case len(raw) > 0:
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		raw = b
	default:
		return Config{}, fmt.Errorf("%w: no config source provided", contract.ErrConfiguration)
	}
	return Parse(FormatOf(path), raw)
}

// Parse 解析指定格式的配置内容。
// YAML/TOML 先解码为通用树再转 JSON，统一走严格 JSON 解码，字段名与校验规则一致。
func Parse(f Format, raw []byte) (Config, error) {
	var cfg Config
	js := raw
	switch f {
	case FormatYAML:
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return cfg, fmt.Errorf("%w: yaml: %v", contract.ErrConfiguration, err)
		}
		b, err := json.Marshal(tree)
		if err != nil {
			return cfg, fmt.Errorf("%w: yaml: %v", contract.ErrConfiguration, err)
		}
		js = b
	case FormatTOML:
		tree := map[string]any{}
		if err := toml.Unmarshal(raw, &tree); err != nil {
			return cfg, fmt.Errorf("%w: toml: %v", contract.ErrConfiguration, err)
		}
		b, err := json.Marshal(tree)
		if err != nil {
			return cfg, fmt.Errorf("%w: toml: %v", contract.ErrConfiguration, err)
		}
		js = b
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	// 与心跳相同：以 nil 区分“未覆盖”，显式 0 保留下来交给 Validate
	if over.Workers != nil {
		out.Workers = Int(*over.Workers)
	}
	if strings.TrimSpace(over.Mode) != "" {
		out.Mode = strings.TrimSpace(over.Mode)
	}
	if strings.TrimSpace(over.Cipher.Type) != "" {
		out.Cipher.Type = strings.TrimSpace(over.Cipher.Type)
	}
	// 空密钥不覆盖；显式空密钥只能来自最底层（默认或文件）
	if over.Cipher.Key != "" {
		out.Cipher.Key = over.Cipher.Key
	}
	// 心跳的 0 具有语义（关闭），以 nil 区分“未覆盖”
	if over.HeartbeatMS != nil {
		v := *over.HeartbeatMS
		out.HeartbeatMS = &v
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.Logging.Dir) != "" {
		out.Logging.Dir = strings.TrimSpace(over.Logging.Dir)
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Normalizer != "" {
		out.Components.Normalizer = over.Components.Normalizer
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Normalizer) > 0 {
		out.Options.Normalizer = cloneRaw(over.Options.Normalizer)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvPrefix 为本程序识别的环境变量前缀。
const EnvPrefix = "CHUNKCIPHER_"

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：INPUTS, WORKERS, MODE, CIPHER, KEY, HEARTBEAT_MS, LOG_LEVEL, LOG_DIR,
// COMPONENTS_{READER,NORMALIZER,WRITER}, OPTIONS_{READER,NORMALIZER,WRITER}_JSON。
// 集合之外的键忽略；数值非法时返回 ErrConfiguration。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		nk := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		switch nk {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "WORKERS":
			if strings.TrimSpace(val) == "" {
				continue
			}
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%w: %s%s: %v", contract.ErrConfiguration, EnvPrefix, nk, err)
			}
			over.Workers = Int(v)
		case "HEARTBEAT_MS":
			if strings.TrimSpace(val) == "" {
				continue
			}
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%w: %s%s: %v", contract.ErrConfiguration, EnvPrefix, nk, err)
			}
			over.HeartbeatMS = &v
		case "MODE":
			over.Mode = strings.TrimSpace(val)
		case "CIPHER":
			over.Cipher.Type = strings.TrimSpace(val)
		case "KEY":
			over.Cipher.Key = val
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_NORMALIZER":
			over.Components.Normalizer = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(val)
		case "OPTIONS_NORMALIZER_JSON":
			over.Options.Normalizer = rawOrNil(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawOrNil(val)
		}
	}
	return over, nil
}

// rawOrNil: 空值视为未设置，避免清空现有配置。
func rawOrNil(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return json.RawMessage(s)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
