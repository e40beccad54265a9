package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath 可执行文件同级 config/config.yaml
func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// WriteFile 以 YAML 写出配置
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":              cfg.App.Name,
			"version":           cfg.App.Version,
			"log_level":         cfg.App.LogLevel,
			"log_path":          cfg.App.LogPath,
			"default_tz_offset": cfg.App.DefaultTZOffset,
		},
		"server": map[string]any{
			"listen_addr":             cfg.Server.ListenAddr,
			"auth_token":              cfg.Server.AuthToken,
			"read_header_timeout_sec": cfg.Server.ReadHeaderTimeoutSec,
		},
		"storage": map[string]any{
			"driver":  cfg.Storage.Driver,
			"db_path": cfg.Storage.DBPath,
			"dsn":     cfg.Storage.DSN,
		},
		"stats": map[string]any{
			"max_range_days": cfg.Stats.MaxRangeDays,
			"retain_days":    cfg.Stats.RetainDays,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	// auth_token / dsn 可能含密钥
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
