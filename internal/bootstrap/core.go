package bootstrap

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/yuqie6/NunuLog/internal/eventbus"
	"github.com/yuqie6/NunuLog/internal/pkg/config"
	"github.com/yuqie6/NunuLog/internal/repository"
	"github.com/yuqie6/NunuLog/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	CfgPath   string
	DB        *repository.Database
	Hub       *eventbus.Hub
	LogCloser io.Closer
	LogErr    error // 日志文件不可用时记录原因，此时仅输出到控制台

	Repos struct {
		Activity *repository.ActivityRepository
		Baby     *repository.BabyRepository
	}

	Services struct {
		Activities *service.ActivityService
		Stats      *service.StatsService
	}
}

// NewCore 加载配置并构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, logErr := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	c, err := NewCoreWithConfig(cfg)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}
	c.CfgPath = cfgPath
	c.LogCloser = logCloser
	c.LogErr = logErr
	return c, nil
}

// NewCoreWithConfig 使用已加载的配置构建核心依赖（不初始化日志）
func NewCoreWithConfig(cfg *config.Config) (*Core, error) {
	db, err := repository.NewDatabase(cfg.Storage)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Activity = repository.NewActivityRepository(db.DB)
	c.Repos.Baby = repository.NewBabyRepository(db.DB)

	// Services
	c.Services.Activities = service.NewActivityService(c.Repos.Activity, c.Repos.Baby, c.Hub)
	c.Services.Stats = service.NewStatsService(c.Repos.Activity, &service.StatsServiceConfig{
		MaxRangeDays: cfg.Stats.MaxRangeDays,
	})

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}

var (
	sharedOnce sync.Once
	sharedCore *Core
	sharedErr  error
)

// Shared 返回进程级共享的 Core：首次调用时构建，之后复用直到进程退出。
// 首次构建失败时错误同样被缓存，后续调用不会重试。
func Shared(cfgPath string) (*Core, error) {
	sharedOnce.Do(func() {
		sharedCore, sharedErr = NewCore(cfgPath)
	})
	return sharedCore, sharedErr
}
