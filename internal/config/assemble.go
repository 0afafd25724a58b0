package config

import (
	"fmt"
	"strings"
	"time"

	"chunkcipher/internal/pipeline"
	"chunkcipher/pkg/contract"
	"chunkcipher/pkg/registry"
)

// Validate 对最小必要边界做静态校验；失败均包装 ErrConfiguration。
// 密钥合法性不在此处判定，由 Assemble 中的算法构造负责。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("%w: inputs empty", contract.ErrConfiguration)
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: input path cannot be empty", contract.ErrConfiguration)
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return fmt.Errorf("%w: '-' cannot be mixed with other roots", contract.ErrConfiguration)
	}
	if cfg.Workers != nil && *cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", contract.ErrConfiguration, *cfg.Workers)
	}
	if _, err := contract.ParseCipherMode(cfg.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Cipher.Type) == "" {
		return fmt.Errorf("%w: cipher.type not set", contract.ErrConfiguration)
	}
	if _, err := contract.ParseCipherType(cfg.Cipher.Type); err != nil {
		return err
	}
	if cfg.HeartbeatMS != nil && *cfg.HeartbeatMS < 0 {
		return fmt.Errorf("%w: heartbeat_ms must be >= 0", contract.ErrConfiguration)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", contract.ErrConfiguration, cfg.Logging.Level)
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", contract.ErrConfiguration, name)
	}
	if name := effName(cfg.Components.Normalizer, d.Components.Normalizer); registry.Normalizer[name] == nil {
		return fmt.Errorf("%w: normalizer %q not registered", contract.ErrConfiguration, name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", contract.ErrConfiguration, name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 算法在任何输入被读取之前构造，非法密钥在此返回 ErrInvalidKey。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	mode, _ := contract.ParseCipherMode(cfg.Mode)
	ct, _ := contract.ParseCipherType(cfg.Cipher.Type)

	c, err := registry.BuildCipher(ct, cfg.Cipher.Key)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults()
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Components.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	n, err := registry.Normalizer[effName(cfg.Components.Normalizer, d.Components.Normalizer)](cfg.Options.Normalizer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	workers := *d.Workers
	if cfg.Workers != nil {
		workers = *cfg.Workers
	}
	hb := *d.HeartbeatMS
	if cfg.HeartbeatMS != nil {
		hb = *cfg.HeartbeatMS
	}
	comp := pipeline.Components{Reader: r, Normalizer: n, Cipher: c, Writer: w}
	set := pipeline.Settings{
		Inputs:    cloneStrings(cfg.Inputs),
		Mode:      mode,
		Workers:   workers,
		Heartbeat: time.Duration(hb) * time.Millisecond,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
