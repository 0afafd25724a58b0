package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），Caesar 移位 3，加密；
// - Writer 输出到 ./out 目录；
// - 选项包含全部键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:      []string{"-"},
		Workers:     d.Workers,
		Mode:        d.Mode,
		Cipher:      Cipher{Type: "caesar", Key: "3"},
		HeartbeatMS: d.HeartbeatMS,
		Logging:     d.Logging,
		Components:  Components{Reader: "fs", Normalizer: "translit", Writer: "fs"},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "include": []
}`)
	cfg.Options.Normalizer = json.RawMessage(`{
  "digits": "words",
  "buf_size": 65536
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "output_file": "",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
