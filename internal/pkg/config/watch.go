package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听配置文件变更，重新解析成功后回调 onChange。
// 仅适用于显式路径；文件不存在时返回错误。
func Watch(configPath string, onChange func(*Config)) error {
	if configPath == "" {
		return fmt.Errorf("configPath 不能为空")
	}
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("配置文件不可用: %w", err)
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("配置热加载失败，保留旧配置", "path", e.Name, "error", err)
			return
		}
		slog.Info("配置文件已变更", "path", e.Name, "op", e.Op.String())
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
