package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "chunkcipher/internal/config"
	"chunkcipher/internal/diag"
	"chunkcipher/internal/pipeline"
	"chunkcipher/pkg/contract"
)

const version = "0.5.0"

// 退出码
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

var pipelineRun = pipeline.Run

// flags 为 CLI 旗标的原始取值。
type flags struct {
	config    string
	initDir   string
	inputs    []string
	output    string
	outputDir string
	cipher    string
	key       string
	encrypt   bool
	decrypt   bool
	workers   int
	heartbeat int
	logLevel  string
	status    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 解析参数并执行；返回进程退出码。
func run(args []string, stdout, stderr io.Writer) int {
	var f flags
	code := exitOK
	cmd := &cobra.Command{
		Use:   "chunkcipher [flags] [roots...]",
		Short: "Classical cipher (caesar/playfair/vigenere) over chunked parallel workers",
		Long: `chunkcipher 将输入规约为 A-Z 后按固定 worker 数切分，
每个分片由独立 worker 执行所选算法，全部完成后按序拼接输出。

位置参数为输入根（文件/目录，或 "-" 表示 STDIN，不能与其他根混用）。
优先级：CLI > ENV(.env, CHUNKCIPHER_*) > 配置文件 > 默认。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, roots []string) error {
			code = execute(cmd, f, roots, stdout, stderr)
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（.json/.yaml/.toml）；缺省读取 ./config.{json,yaml,toml}（若存在）")
	fl.StringVar(&f.initDir, "init-config", "", "在指定目录生成默认 config.json 与 .env 模板（已存在则跳过）；不带值时为当前目录")
	fl.Lookup("init-config").NoOptDefVal = "."
	fl.StringArrayVarP(&f.inputs, "input", "i", nil, "输入文件（可重复）；与位置参数合并")
	fl.StringVarP(&f.output, "output", "o", "", "输出到单一文件")
	fl.StringVar(&f.outputDir, "output-dir", "", "输出目录（每个输入一个产物）")
	fl.StringVarP(&f.cipher, "cipher", "c", "", "算法：caesar|playfair|vigenere")
	fl.StringVarP(&f.key, "key", "k", "", "密钥（caesar 为非负整数，其余为字母）")
	fl.BoolVar(&f.encrypt, "encrypt", false, "加密（默认）")
	fl.BoolVar(&f.decrypt, "decrypt", false, "解密")
	fl.IntVarP(&f.workers, "workers", "w", 0, "worker 数 = 分片数（覆盖配置）")
	fl.IntVar(&f.heartbeat, "heartbeat", -1, "等待期间心跳间隔（毫秒，0 关闭；覆盖配置）")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	cmd.MarkFlagsMutuallyExclusive("encrypt", "decrypt")
	cmd.MarkFlagsMutuallyExclusive("output", "output-dir")

	// nil 会让 cobra 回退到 os.Args
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	return code
}

func execute(cmd *cobra.Command, f flags, roots []string, stdout, stderr io.Writer) int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先以默认级别占位，合并配置后按最终 level/dir 重建
	logger := diag.NewLogger(corrID, "info", "")
	defer func() { _ = logger.Close() }()

	// --init-config: 生成模板并退出
	if dir := strings.TrimSpace(f.initDir); dir != "" {
		if err := initConfig(dir); err != nil {
			fprintf(stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init config failed", &start)
			return exitConfig
		}
		return exitOK
	}

	cfg, err := loadConfig(cmd, f, roots)
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.RecordError("config", err)), "load failed", &start)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(stderr, cfg)
		logger.Error("config", string(diag.RecordError("config", err)), "validate failed", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别/目录重建 logger
	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)

	if err := preflightCheckOutput(cfg); err != nil {
		fprintf(stderr, "输出路径不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.RecordError("config", err)), "preflight failed", &start)
		return exitConfig
	}

	// 算法在读取任何输入之前构造，非法密钥在此失败
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.RecordError("config", err)), "assemble failed", &start)
		return exitConfig
	}

	term := diag.NewTerminal(stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(set.Workers, strings.ToLower(cfg.Cipher.Type))

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"workers":      strconv.Itoa(set.Workers),
		"mode":         set.Mode.String(),
		"cipher":       cfg.Cipher.Type,
		"key_len":      strconv.Itoa(len(cfg.Cipher.Key)),
		"heartbeat":    set.Heartbeat.String(),
		"reader":       cfg.Components.Reader,
		"normalizer":   cfg.Components.Normalizer,
		"writer":       cfg.Components.Writer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	err = pipelineRun(ctx, comp, set, logger)
	defer func() { logger.DebugStart("metrics", "snapshot", "", "", diag.SnapshotMetrics().Flatten()) }()
	if err != nil {
		code := diag.RecordError("pipeline", err)
		kv := map[string]string{"err": err.Error()}
		if failed := contract.FailedChunks(err); len(failed) > 0 {
			kv["failed_chunks"] = fmt.Sprint(failed)
		}
		logger.ErrorWithKV("pipeline", string(code), "first error", &start, "", "", kv)
		if !errors.Is(err, context.Canceled) {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		// 配置类错误（如 reader 的 include/stdin 混用）仍归为配置退出码
		if code == diag.CodeConfig || code == diag.CodeKey {
			return exitConfig
		}
		return exitRuntime
	}
	t.Finish("run", 0)
	diag.IncOp("pipeline", "finish", "success")
	term.RunFinish(true, time.Since(start))
	return exitOK
}

// loadConfig: 默认 → 文件 → ENV → CLI 逐层合并。
func loadConfig(cmd *cobra.Command, f flags, roots []string) (cfgpkg.Config, error) {
	path := f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	var raw []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		raw = []byte(s)
		path = ""
	}
	// 默认读取工作目录下 config.{json,yaml,yml,toml}（若存在）
	if path == "" && len(raw) == 0 {
		for _, name := range []string{"config.json", "config.yaml", "config.yml", "config.toml"} {
			if st, err := os.Stat(name); err == nil && !st.IsDir() {
				path = name
				break
			}
		}
	}

	cfg := cfgpkg.Defaults()
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.Load(path, raw)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI, err := cliOverlay(cmd, f, roots)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	// 无任何输入时读取 STDIN
	if len(cfg.Inputs) == 0 {
		cfg.Inputs = []string{"-"}
	}
	return cfg, nil
}

// cliOverlay 将旗标转为 Config 覆盖；未出现的旗标不覆盖。
func cliOverlay(cmd *cobra.Command, f flags, roots []string) (cfgpkg.Config, error) {
	var over cfgpkg.Config
	over.Inputs = append(append([]string(nil), f.inputs...), roots...)
	// 显式 0 或负数原样保留，交给 Validate 拒绝
	if cmd.Flags().Changed("workers") {
		over.Workers = cfgpkg.Int(f.workers)
	}
	if cmd.Flags().Changed("heartbeat") {
		hb := f.heartbeat
		over.HeartbeatMS = &hb
	}
	switch {
	case f.encrypt:
		over.Mode = contract.Encrypt.String()
	case f.decrypt:
		over.Mode = contract.Decrypt.String()
	}
	over.Cipher.Type = f.cipher
	over.Cipher.Key = f.key
	over.Logging.Level = f.logLevel

	var wopts map[string]string
	switch {
	case f.output != "":
		wopts = map[string]string{"output_file": f.output}
	case f.outputDir != "":
		wopts = map[string]string{"output_dir": f.outputDir}
	}
	if wopts != nil {
		b, err := json.Marshal(wopts)
		if err != nil {
			return over, err
		}
		over.Components.Writer = "fs"
		over.Options.Writer = b
	}
	return over, nil
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	// 不输出密钥原文
	if c.Cipher.Key != "" {
		c.Cipher.Key = "***"
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fprintf(w, "有效配置:\n%s\n", b)
	return nil
}

// initConfig 在 dir 下生成 config.json 与 .env 模板；已存在的文件保持不动。
func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	return writeDotEnv(filepath.Join(dir, ".env"))
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return f.Close()
}

// loadDotEnv 加载工作目录下的 .env；文件不存在时忽略，已存在的环境变量不被覆盖。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# chunkcipher .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "WORKERS", "MODE", "CIPHER", "KEY", "HEARTBEAT_MS", "LOG_LEVEL", "LOG_DIR"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（原样 JSON）\n")
	for _, k := range []string{"READER", "NORMALIZER", "WRITER"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	for _, k := range []string{"READER", "NORMALIZER", "WRITER"} {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return f.Close()
}

// preflightCheckOutput: 当 Writer 使用文件系统实现(fs)时，启动前检查输出位置可写性。
// - output_dir 已存在：尝试创建并删除临时文件；
// - output_dir 不存在或为 output_file：检查最近的父目录可写。
func preflightCheckOutput(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Writer)
	if name == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if name != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir  string `json:"output_dir"`
		OutputFile string `json:"output_file"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if file := strings.TrimSpace(wopts.OutputFile); file != "" {
		if st, err := os.Stat(file); err == nil && st.IsDir() {
			return fmt.Errorf("%w: output_file is a directory: %s", contract.ErrConfiguration, file)
		}
		dir = filepath.Dir(file)
	}
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	case err == nil:
		return fmt.Errorf("%w: path exists but is not a directory: %s", contract.ErrConfiguration, dir)
	case !os.IsNotExist(err):
		return err
	}
	// 目录不存在：向上找到第一个已存在的祖先并检查可写性
	parent := filepath.Dir(dir)
	for parent != dir {
		if pst, err := os.Stat(parent); err == nil {
			if !pst.IsDir() {
				return fmt.Errorf("%w: parent is not a directory: %s", contract.ErrConfiguration, parent)
			}
			tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
			if err != nil {
				return err
			}
			return os.RemoveAll(tmpd)
		}
		dir, parent = parent, filepath.Dir(parent)
	}
	return fmt.Errorf("%w: cannot resolve parent of %s", contract.ErrConfiguration, dir)
}
