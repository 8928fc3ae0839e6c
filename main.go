package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/apihook/apihook/apihook"
	"github.com/apihook/apihook/internal/catalog"
	"github.com/apihook/apihook/internal/config"
	"github.com/apihook/apihook/internal/logging"
	"github.com/apihook/apihook/internal/server"
	"github.com/apihook/apihook/internal/server/routes"
	"github.com/apihook/apihook/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	endpoint    string
	args        apihook.Args
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	cat, err := catalog.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 Endpoint 目录失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["endpoints"] = config.EndpointNames(cfg.Endpoints)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if opts.endpoint != "" {
		return callOnce(cat, opts)
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["endpoints"] = len(cfg.Endpoints)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")
	for _, entry := range cat.List() {
		logger.WithFields(logging.EndpointFields(entry.Config.Name, entry.Hook.Method(), entry.Hook.FunctionName())).Debug("endpoint registered")
	}

	if err := startHTTPServer(cfg, cat, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// callOnce 调用单个 Endpoint 并把响应以 JSON 输出到 stdout。
func callOnce(cat *catalog.Catalog, opts cliOptions) int {
	entry, ok := cat.Lookup(opts.endpoint)
	if !ok {
		fmt.Fprintf(stdErr, "未找到 Endpoint: %s\n", opts.endpoint)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instance := entry.Hook.Activate()
	defer instance.Dispose()

	data, err := instance.ExecuteContext(ctx, opts.args, apihook.Callbacks[any]{}).Wait()
	if err != nil {
		fmt.Fprintf(stdErr, "调用 %s 失败: %v\n", opts.endpoint, err)
		return 1
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(stdErr, "编码响应失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdOut, string(encoded))
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("apihook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		endpoint   string
		pathArgs   = kvFlag{}
		queryArgs  = kvFlag{}
		headerArgs = kvFlag{}
		bodyArgs   = kvFlag{}
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 APIHOOK_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&endpoint, "endpoint", "", "调用指定 Endpoint 后退出")
	fs.Var(pathArgs, "path", "路径参数 key=value，可重复")
	fs.Var(queryArgs, "query", "query 参数 key=value，可重复")
	fs.Var(headerArgs, "header", "header 参数 key=value，可重复")
	fs.Var(bodyArgs, "body", "body 参数 key=value，可重复")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("APIHOOK_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		endpoint:    strings.TrimSpace(endpoint),
		args: apihook.Args{
			Path:   pathArgs.values(),
			Query:  queryArgs.values(),
			Header: headerArgs.values(),
			Body:   bodyArgs.values(),
		},
	}, nil
}

// kvFlag 收集可重复的 key=value 参数；value 是合法 JSON 时按 JSON 解码，否则保留为字符串。
type kvFlag map[string]any

func (f kvFlag) String() string {
	if len(f) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (f kvFlag) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("参数格式应为 key=value: %q", raw)
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		f[key] = decoded
		return nil
	}
	f[key] = value
	return nil
}

func (f kvFlag) values() map[string]any {
	if len(f) == 0 {
		return nil
	}
	return map[string]any(f)
}

func startHTTPServer(cfg *config.Config, cat *catalog.Catalog, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterEndpointRoutes(app, cat, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
