package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yuqie6/NunuLog/internal/bootstrap"
)

// LocalServer 本地 HTTP 服务
type LocalServer struct {
	core    *bootstrap.Core
	ln      net.Listener
	srv     *http.Server
	baseURL string
}

// Options 启动参数
type Options struct {
	ListenAddr string // e.g. "127.0.0.1:8420"，端口为 0 时随机分配
}

// Start 监听并在后台提供服务；ctx 结束时自动关闭
func Start(ctx context.Context, core *bootstrap.Core, opts Options) (*LocalServer, error) {
	if core == nil {
		return nil, fmt.Errorf("core 不能为空")
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = core.Cfg.Server.ListenAddr
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("监听 %s 失败: %w", opts.ListenAddr, err)
	}

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	baseURL := "http://" + net.JoinHostPort(host, portStr)

	readHeaderTimeout := time.Duration(core.Cfg.Server.ReadHeaderTimeoutSec) * time.Second
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	srv := &http.Server{
		Handler:           NewHandler(core),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ls := &LocalServer{
		core:    core,
		ln:      ln,
		srv:     srv,
		baseURL: baseURL,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ls.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	slog.Info("HTTP 服务已启动", "base_url", baseURL, "auth", core.Cfg.Server.AuthToken != "")
	return ls, nil
}

// BaseURL 服务地址
func (s *LocalServer) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

// Shutdown 优雅关闭
func (s *LocalServer) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// NewHandler 构建带中间件的路由
func NewHandler(core *bootstrap.Core) http.Handler {
	api := newAPI(core)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.wrapGET(api.handleHealth))
	mux.HandleFunc("/api/status", api.wrapGET(api.getStatus))
	mux.HandleFunc("/api/events", api.wrapGET(api.handleSSE))
	api.registerJSONRoutes(mux)

	var h http.Handler = mux
	h = authMiddleware(core.Cfg.Server.AuthToken, h)
	h = accessLogMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}
