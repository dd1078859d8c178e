package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"config-client/internal/client"
	"config-client/internal/observability/metrics"
	"config-client/pkg/logger"
)

// ConfigPath 是配置查询接口的路由。
const ConfigPath = "/client/config"

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// Server 负责暴露 HTTP 接口，所有路由在 routes 中显式注册。
type Server struct {
	addr              string
	controller        *client.Controller
	collector         *metrics.Collector
	metricsPath       string
	logger            *slog.Logger
	audit             *slog.Logger
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

// Option 调整 Server 的可选参数。
type Option func(*Server)

// WithMetrics 为每个请求记录指标；path 非空时在同一监听地址上暴露指标。
func WithMetrics(collector *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.collector = collector
		s.metricsPath = path
	}
}

// WithLogger 替换服务日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuditLogger 替换访问日志记录器。
func WithAuditLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.audit = l
		}
	}
}

// WithTimeouts 设置读取请求头与优雅关闭的超时时间，非正数保持默认值。
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(s *Server) {
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, controller *client.Controller, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		controller:        controller,
		readHeaderTimeout: defaultReadHeaderTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	if s.audit == nil {
		s.audit = logger.Audit()
	}
	return s
}

// Handler 返回带中间件的完整路由，ctx 取消后新请求返回 503。
func (s *Server) Handler(ctx context.Context) http.Handler {
	var handler http.Handler = s.routes()
	handler = withContext(ctx, handler)
	handler = s.withAccessLog(handler)
	return withRequestID(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(ConfigPath, s.instrument("config", http.HandlerFunc(s.handleConfig)))
	mux.Handle("/healthz", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	if s.collector != nil && s.metricsPath != "" {
		mux.Handle(s.metricsPath, s.collector.Handler())
	}
	return mux
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.collector == nil {
		return h
	}
	return s.collector.Middleware(name, h)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("HTTP 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP 服务关闭超时", slog.Any("error", err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleConfig 返回启动时解析好的属性，仅支持 GET。
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controller == nil {
		http.Error(w, "controller 未初始化", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.controller.GetConfig())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
