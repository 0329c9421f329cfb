package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"futures-exec/internal/app"
	"futures-exec/internal/config"
	"futures-exec/internal/journal"
	"futures-exec/internal/log"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "用法: exec <子命令> [参数]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "子命令:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "exec <子命令> -h 查看子命令参数")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "未知子命令 %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	var configPath string
	var dryRun bool
	fs.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	fs.BoolVar(&dryRun, "dry-run", false, "模拟模式，不向交易所提交真实订单")
	run := cmd.bind(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	jnl, err := journal.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("初始化事件流水失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := jnl.Close(); closeErr != nil {
			logger.Warn("关闭事件流水失败", zap.Error(closeErr))
		}
	}()

	execApp, err := app.New(cfg, logger, jnl, dryRun)
	if err != nil {
		logger.Error("初始化执行层失败", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, execApp, logger); err != nil {
		logger.Error("命令执行失败", zap.Error(err))
		os.Exit(1)
	}
}
