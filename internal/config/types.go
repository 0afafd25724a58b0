package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// Workers: 分片数 = worker 数；静态配置，不随输入或硬件变化。
	// nil 表示未设置；显式 0 或负数由 Validate 拒绝。
	Workers *int   `json:"workers,omitempty"`
	Mode    string `json:"mode"`
	Cipher  Cipher `json:"cipher"`
	// HeartbeatMS: 等待期间的心跳间隔（毫秒）；0 关闭。nil 表示未设置。
	HeartbeatMS *int    `json:"heartbeat_ms,omitempty"`
	Logging     Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Cipher: 算法选择与密钥。密钥校验由算法实现负责。
type Cipher struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Logging: 日志等级与目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader     string `json:"reader"`
	Normalizer string `json:"normalizer"`
	Writer     string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader     json.RawMessage `json:"reader,omitempty"`
	Normalizer json.RawMessage `json:"normalizer,omitempty"`
	Writer     json.RawMessage `json:"writer,omitempty"`
}

// Int 返回 v 的指针，便于构造可选整数字段。
func Int(v int) *int { return &v }
