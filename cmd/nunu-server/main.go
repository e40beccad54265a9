package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuqie6/NunuLog/internal/bootstrap"
	"github.com/yuqie6/NunuLog/internal/httpapi"
	"github.com/yuqie6/NunuLog/internal/pkg/buildinfo"
	"github.com/yuqie6/NunuLog/internal/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	cancel()
	if err != nil {
		slog.Error("NunuLog 异常退出", "error", err)
		os.Exit(1)
	}
}

// run 启动服务并阻塞到 ctx 结束；所有资源在返回前释放
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nunu-server", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "配置文件路径（默认为程序目录下 config/config.yaml）")
	listen := fs.String("listen", "", "监听地址，覆盖 server.listen_addr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *cfgPath
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}
	// 首次运行写出默认配置，便于用户修改
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteFile(path, config.Default()); err != nil {
				slog.Warn("写入默认配置失败", "path", path, "error", err)
			}
		}
	}

	core, err := bootstrap.Shared(path)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer core.Close()

	slog.Info("NunuLog 启动中...", "version", buildinfo.Version, "commit", buildinfo.Commit, "config", path)
	if core.DB.SafeMode {
		slog.Warn("数据库处于安全模式，仅提供只读接口", "reason", core.DB.MigrationError)
	}

	if path != "" {
		err := config.Watch(path, func(cfg *config.Config) {
			config.SetLogLevel(cfg.App.LogLevel)
			slog.Info("配置已重新加载", "log_level", cfg.App.LogLevel)
		})
		if err != nil {
			slog.Warn("监听配置文件失败", "error", err)
		}
	}

	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: *listen})
	if err != nil {
		return fmt.Errorf("启动 HTTP 服务失败: %w", err)
	}
	core.StartRetention(ctx)

	<-ctx.Done()
	slog.Info("正在关闭...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP 服务关闭超时", "error", err)
	}
	slog.Info("NunuLog 已退出")
	return nil
}
