package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("APIHOOK_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsCallArguments(t *testing.T) {
	opts, err := parseCLIFlags([]string{
		"--endpoint", "getPost",
		"--path", "userId=7",
		"--path", "postId=abc",
		"--query", "lang=es_ES",
		"--body", `tags=["a","b"]`,
	})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.endpoint != "getPost" {
		t.Fatalf("endpoint 解析错误: %s", opts.endpoint)
	}
	if opts.args.Path["userId"] != float64(7) || opts.args.Path["postId"] != "abc" {
		t.Fatalf("path 参数解析错误: %v", opts.args.Path)
	}
	if opts.args.Query["lang"] != "es_ES" {
		t.Fatalf("query 参数解析错误: %v", opts.args.Query)
	}
	if tags, ok := opts.args.Body["tags"].([]any); !ok || len(tags) != 2 {
		t.Fatalf("body JSON 值应被解码: %v", opts.args.Body)
	}
	if opts.args.Header != nil {
		t.Fatalf("未提供的 header 应为 nil")
	}
}

func TestParseCLIFlagsRejectsMalformedPair(t *testing.T) {
	if _, err := parseCLIFlags([]string{"--query", "novalue"}); err == nil {
		t.Fatalf("缺少 = 的参数应报错")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含加载失败信息")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "apihook") {
		t.Fatalf("version 输出应包含 apihook 标识")
	}
}

func TestRunCallsEndpointOnce(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"no such user"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"ada"}`))
	}))
	defer upstream.Close()

	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"

[[Endpoint]]
Name = "getUser"
BaseURL = "%s"
Path = "/users/:id"
`, upstream.URL))

	useBufferWriters(t)
	opts, err := parseCLIFlags([]string{"--config", configPath, "--endpoint", "getUser", "--path", "id=7"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if code := run(opts); code != 0 {
		t.Fatalf("调用应成功，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}

	var payload map[string]any
	if err := json.Unmarshal(stdOutBuffer().Bytes(), &payload); err != nil {
		t.Fatalf("stdout 应为 JSON: %v (%s)", err, stdOutBuffer().String())
	}
	if payload["name"] != "ada" {
		t.Fatalf("响应内容错误: %v", payload)
	}

	useBufferWriters(t)
	opts, _ = parseCLIFlags([]string{"--config", configPath, "--endpoint", "getUser", "--path", "id=8"})
	if code := run(opts); code == 0 {
		t.Fatalf("上游 404 应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "no such user") {
		t.Fatalf("stderr 应包含上游错误信息: %s", stdErrBuffer().String())
	}
}

func TestRunUnknownEndpoint(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), endpoint: "nope"})
	if code != 1 {
		t.Fatalf("未知 Endpoint 应返回 1，得到 %d", code)
	}
}
