package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Stats   StatsConfig   `mapstructure:"stats"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	// DefaultTZOffset 请求未携带 tz 时使用的偏移（getTimezoneOffset 编码，UTC+8 为 -480）
	DefaultTZOffset int `mapstructure:"default_tz_offset"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	ListenAddr           string `mapstructure:"listen_addr"`
	AuthToken            string `mapstructure:"auth_token"` // 为空时不校验
	ReadHeaderTimeoutSec int    `mapstructure:"read_header_timeout_sec"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"` // postgres 连接串
}

// StatsConfig 统计配置
type StatsConfig struct {
	MaxRangeDays int `mapstructure:"max_range_days"`
	RetainDays   int `mapstructure:"retain_days"` // 0 表示永久保留
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else if configPath != "" && os.IsNotExist(err) {
			slog.Warn("配置文件不存在，使用默认配置", "path", configPath)
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	return decode(v)
}

// Default 返回全部取默认值的配置
func Default() *Config {
	cfg, err := decode(newViper(""))
	if err != nil {
		// 默认值均为基础类型，不会解析失败
		panic(err)
	}
	return cfg
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("NUNU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.Server.AuthToken = expandEnv(cfg.Server.AuthToken)
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Storage.DBPath) == "" {
			return fmt.Errorf("storage.db_path 不能为空")
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.driver=postgres 时 storage.dsn 不能为空")
		}
	default:
		return fmt.Errorf("不支持的 storage.driver: %q", c.Storage.Driver)
	}
	if c.App.DefaultTZOffset < -MaxTZOffset || c.App.DefaultTZOffset > MaxTZOffset {
		return fmt.Errorf("app.default_tz_offset=%d 超出范围 [-%d, %d]", c.App.DefaultTZOffset, MaxTZOffset, MaxTZOffset)
	}
	if c.Stats.MaxRangeDays <= 0 {
		return fmt.Errorf("stats.max_range_days 必须大于 0")
	}
	return nil
}

// MaxTZOffset tz 参数允许的最大绝对值（分钟）
const MaxTZOffset = 1440

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "nunu-log")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.default_tz_offset", 0)

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:8420")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.read_header_timeout_sec", 5)

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/nunu.db")
	v.SetDefault("storage.dsn", "")

	// Stats
	v.SetDefault("stats.max_range_days", 92)
	v.SetDefault("stats.retain_days", 0)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 为空时只输出到 stdout
	Component string
}

var logLevel = new(slog.LevelVar)

// SetupLogger 根据配置设置日志级别与输出；返回的 Closer 用于关闭日志文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	SetLogLevel(opts.Level)

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
		fErr   error
	)
	if p := strings.TrimSpace(opts.Path); p != "" {
		p = resolvePath(p)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			fErr = fmt.Errorf("创建日志目录失败: %w", err)
		} else if f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			fErr = fmt.Errorf("打开日志文件失败: %w", err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	if fErr != nil {
		slog.Warn("日志文件不可用，仅输出到控制台", "error", fErr)
	}
	return closer, fErr
}

// SetLogLevel 动态调整日志级别
func SetLogLevel(level string) {
	logLevel.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
