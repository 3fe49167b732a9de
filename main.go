package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/config"
	"github.com/any-hub/localdata/internal/logging"
	"github.com/any-hub/localdata/internal/metrics"
	"github.com/any-hub/localdata/internal/server"
	"github.com/any-hub/localdata/internal/server/routes"
	"github.com/any-hub/localdata/internal/upstream"
	"github.com/any-hub/localdata/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
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

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["kinds"] = config.KindNames(cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘存储 → 指标 → 各 Kind 的 Manager → Fiber server，
	// 所有请求共享同一组 Manager，保证缓存与订阅在进程内唯一。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化存储目录失败: %v\n", err)
		return 1
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collectorSet, err := metrics.NewCollectors(promRegistry)
	if err != nil {
		fmt.Fprintf(stdErr, "注册指标失败: %v\n", err)
		return 1
	}

	registry, err := server.NewKindRegistry(cfg, server.RegistryOptions{
		Store:      store,
		HTTPClient: upstream.NewHTTPClient(cfg),
		Logger:     logger,
		Metrics:    collectorSet,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建 Kind 注册表失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["kinds"] = config.KindNames(cfg)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = cfg.Global.StoragePath
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, registry, promRegistry, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("localdata", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 LOCALDATA_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("LOCALDATA_CONFIG")
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
	}, nil
}

// serve 启动 Fiber 并阻塞到 ctx 结束；退出时先关闭 HTTP，再在 FlushTimeout 内落盘所有 Manager。
func serve(ctx context.Context, cfg *config.Config, registry *server.KindRegistry, gatherer prometheus.Gatherer, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Registry:    registry,
		BaseContext: ctx,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticRoutes(app, registry, gatherer)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-listenErr:
		closeRegistry(cfg, registry, logger)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Global.FlushTimeout.DurationValue())
	defer cancel()

	var errs []error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := registry.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	logger.WithFields(logrus.Fields{"action": "shutdown"}).Info("服务已停止")
	return errors.Join(errs...)
}

func closeRegistry(cfg *config.Config, registry *server.KindRegistry, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.FlushTimeout.DurationValue())
	defer cancel()
	if err := registry.Close(ctx); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"action": "shutdown"}).Warn("flush_failed")
	}
}
