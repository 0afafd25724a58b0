package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "chunkcipher/internal/config"
	"chunkcipher/internal/diag"
	"chunkcipher/internal/pipeline"
	"chunkcipher/pkg/contract"
)

// stubPipeline 替换 pipelineRun 并记录收到的 Settings。
func stubPipeline(t *testing.T, ret error) *pipeline.Settings {
	t.Helper()
	got := &pipeline.Settings{}
	orig := pipelineRun
	pipelineRun = func(_ context.Context, comp pipeline.Components, set pipeline.Settings, _ *diag.Logger) error {
		require.NotNil(t, comp.Cipher)
		*got = set
		return ret
	}
	t.Cleanup(func() { pipelineRun = orig })
	return got
}

func runArgs(args ...string) (int, string, string) {
	var out, errb bytes.Buffer
	code := run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "c.json")
	require.NoError(t, writeConfig(file, cfgpkg.DefaultTemplateConfig()))
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	got, err := cfgpkg.Parse(cfgpkg.FormatJSON, b)
	require.NoError(t, err)
	assert.Equal(t, "caesar", got.Cipher.Type)

	// 不覆盖已存在文件
	assert.ErrorIs(t, writeConfig(file, cfgpkg.Defaults()), os.ErrExist)
}

func TestDumpConfigMasksKey(t *testing.T) {
	cfg := cfgpkg.Defaults()
	cfg.Cipher = cfgpkg.Cipher{Type: "vigenere", Key: "SECRET"}
	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfg))
	assert.NotContains(t, buf.String(), "SECRET")
	assert.Contains(t, buf.String(), `"key": "***"`)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	content := "# comment\n\nexport CHUNKCIPHER_TEST_A=plain\nCHUNKCIPHER_TEST_B=\"a\\nb\"\nCHUNKCIPHER_TEST_C='x y'\nCHUNKCIPHER_TEST_D=new\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	t.Setenv("CHUNKCIPHER_TEST_D", "old")
	for _, k := range []string{"CHUNKCIPHER_TEST_A", "CHUNKCIPHER_TEST_B", "CHUNKCIPHER_TEST_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	require.NoError(t, loadDotEnv(p))
	assert.Equal(t, "plain", os.Getenv("CHUNKCIPHER_TEST_A"))
	assert.Equal(t, "a\nb", os.Getenv("CHUNKCIPHER_TEST_B"))
	assert.Equal(t, "x y", os.Getenv("CHUNKCIPHER_TEST_C"))
	assert.Equal(t, "old", os.Getenv("CHUNKCIPHER_TEST_D"), "existing env must win")

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestRunInitConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	outDir := filepath.Join(dir, "tpl")
	code, _, _ := runArgs("--init-config", outDir)
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(outDir, "config.json"))
	env, err := os.ReadFile(filepath.Join(outDir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "CHUNKCIPHER_KEY=")

	// 再次生成：已存在文件保持不动，仍然成功
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "config.json"), []byte("{}"), 0o644))
	code, _, _ = runArgs("--init-config", outDir)
	require.Equal(t, 0, code)
	b, err := os.ReadFile(filepath.Join(outDir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestRunInitConfigDefaultDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	code, _, _ := runArgs("--init-config")
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(dir, "config.json"))
	assert.FileExists(t, filepath.Join(dir, ".env"))
}

func TestRunConfigJSONEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Workers = cfgpkg.Int(7)
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	t.Setenv("CHUNKCIPHER_CONFIG_JSON", string(b))

	got := stubPipeline(t, nil)
	code, _, _ := runArgs("--status=false")
	require.Equal(t, 0, code)
	assert.Equal(t, 7, got.Workers)
	assert.Equal(t, []string{"-"}, got.Inputs)
	assert.Equal(t, contract.Encrypt, got.Mode)
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yml := "inputs: [\"-\"]\nworkers: 3\nmode: decrypt\ncipher:\n  type: vigenere\n  key: LEMON\nheartbeat_ms: 0\n"
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	got := stubPipeline(t, nil)
	code, _, _ := runArgs("--config", path, "--status=false")
	require.Equal(t, 0, code)
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, contract.Decrypt, got.Mode)
	assert.Zero(t, got.Heartbeat)
}

func TestRunDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	toml := "workers = 5\n[cipher]\ntype = \"caesar\"\nkey = \"1\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	got := stubPipeline(t, nil)
	code, _, _ := runArgs("--status=false")
	require.Equal(t, 0, code)
	assert.Equal(t, 5, got.Workers)
}

func TestRunConfigNotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	stubPipeline(t, nil)
	code, _, stderr := runArgs("--config", "missing.json")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "配置解析失败")
}

func TestRunCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := cfgpkg.DefaultTemplateConfig()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	t.Setenv("CHUNKCIPHER_CONFIG_JSON", string(b))
	t.Setenv("CHUNKCIPHER_WORKERS", "2")

	in := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(in, []byte("abc"), 0o644))

	got := stubPipeline(t, nil)
	code, _, _ := runArgs("-w", "9", "--decrypt", "-c", "vigenere", "-k", "KEY", "--heartbeat", "250", "--status=false", in)
	require.Equal(t, 0, code)
	assert.Equal(t, 9, got.Workers)
	assert.Equal(t, contract.Decrypt, got.Mode)
	assert.Equal(t, []string{in}, got.Inputs)
	assert.Equal(t, int64(250), got.Heartbeat.Milliseconds())
}

func TestRunEnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	b, err := json.Marshal(cfgpkg.DefaultTemplateConfig())
	require.NoError(t, err)
	t.Setenv("CHUNKCIPHER_CONFIG_JSON", string(b))
	t.Setenv("CHUNKCIPHER_WORKERS", "2")

	got := stubPipeline(t, nil)
	code, _, _ := runArgs("--status=false")
	require.Equal(t, 0, code)
	assert.Equal(t, 2, got.Workers)
}

func TestRunValidateError(t *testing.T) {
	t.Chdir(t.TempDir())
	stubPipeline(t, nil)

	code, _, stderr := runArgs("--log-level", "verbose", "--status=false")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "配置校验失败")

	code, _, _ = runArgs("-c", "rot13", "-k", "1")
	assert.Equal(t, 3, code)
	code, _, _ = runArgs("-c", "caesar", "-k", "1", "--heartbeat", "-5")
	assert.Equal(t, 3, code)
	code, _, _ = runArgs("-c", "caesar", "-k", "1", "-w", "0")
	assert.Equal(t, 3, code)
}

// 显式 0 个 worker 无论来自哪一层都是配置错误
func TestRunZeroWorkersEveryLayer(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	called := false
	orig := pipelineRun
	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) error {
		called = true
		return nil
	}
	t.Cleanup(func() { pipelineRun = orig })

	path := filepath.Join(dir, "zero.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers":0}`), 0o644))
	code, _, stderr := runArgs("--config", path, "--status=false")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "workers must be >= 1")

	t.Setenv("CHUNKCIPHER_WORKERS", "0")
	code, _, _ = runArgs("--status=false")
	assert.Equal(t, 3, code)

	// CLI 的正值覆盖 ENV 的 0
	code, _, _ = runArgs("-w", "2", "--status=false")
	assert.Equal(t, 0, code)
	assert.True(t, called)
}

// 未指定算法时默认 caesar
func TestRunDefaultCipherCaesar(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("hello"), 0o644))
	out := filepath.Join(dir, "out.txt")

	code, _, stderr := runArgs("-k", "3", "-o", out, "--status=false", in)
	require.Equal(t, 0, code, stderr)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "KHOOR\n", string(b))
}

func TestRunInvalidKeyBeforeInput(t *testing.T) {
	t.Chdir(t.TempDir())
	called := false
	orig := pipelineRun
	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) error {
		called = true
		return nil
	}
	t.Cleanup(func() { pipelineRun = orig })

	for _, args := range [][]string{
		{"-c", "caesar", "-k", "abc"},
		{"-c", "caesar", "-k", "-3"},
		{"-c", "playfair", "-k", "AB1"},
		{"-c", "vigenere", "-k", "LE MON"},
	} {
		code, _, stderr := runArgs(append(args, "--status=false")...)
		assert.Equal(t, 3, code, "%v", args)
		assert.Contains(t, stderr, "装配失败")
	}
	assert.False(t, called, "input must not be read when key is invalid")
}

func TestRunFlagErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	stubPipeline(t, nil)
	code, _, _ := runArgs("--encrypt", "--decrypt", "-c", "caesar", "-k", "1")
	assert.Equal(t, 3, code)
	code, _, _ = runArgs("-o", "a", "--output-dir", "b", "-c", "caesar", "-k", "1")
	assert.Equal(t, 3, code)
	code, _, _ = runArgs("--no-such-flag")
	assert.Equal(t, 3, code)
	// 缺少旗标值同样按用法错误处理
	code, _, stderr := runArgs("-c", "caesar", "-k")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "参数错误")
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runArgs("--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", stdout)
}

func TestRunPipelineError(t *testing.T) {
	t.Chdir(t.TempDir())
	werr := errors.Join(&contract.WorkerError{Index: 2, Cause: errors.New("boom")})
	stubPipeline(t, werr)
	code, _, stderr := runArgs("-c", "caesar", "-k", "1", "--status=true")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "运行失败")
	assert.Contains(t, stderr, "[fail] 全部完成")
}

func TestRunPreflightOutputNotDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	stubPipeline(t, nil)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	code, _, stderr := runArgs("-c", "caesar", "-k", "1", "--output-dir", blocker)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "输出路径不可写")

	code, _, _ = runArgs("-c", "caesar", "-k", "1", "-o", dir)
	assert.Equal(t, 3, code)
}

// TestRunEndToEnd 真实流水线：文件 → 规约 → 分片加密 → 单文件输出，再解密还原。
func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "msg.txt")
	require.NoError(t, os.WriteFile(in, []byte("Hello, World!"), 0o644))
	enc := filepath.Join(dir, "enc", "msg.enc")

	code, _, stderr := runArgs("-c", "caesar", "-k", "3", "-w", "4", "-i", in, "-o", enc, "--status=false")
	require.Equal(t, 0, code, stderr)
	b, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.Equal(t, "KHOORZRUOG\n", string(b))

	dec := filepath.Join(dir, "msg.dec")
	code, _, stderr = runArgs("-c", "caesar", "-k", "3", "--decrypt", "-i", enc, "-o", dec, "--status=false")
	require.Equal(t, 0, code, stderr)
	b, err = os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, "HELLOWORLD\n", string(b))
}

func TestRunReaderFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	code, _, stderr := runArgs("-c", "caesar", "-k", "3", filepath.Join(dir, "nope.txt"), "--status=false")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "运行失败")
}
