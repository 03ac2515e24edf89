package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"larkticket/internal/config"
	"larkticket/internal/dispatch"
	"larkticket/internal/infra/queue"
	"larkticket/internal/worker/handlers"
	"larkticket/internal/worker/tasks"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 worker，eventTypes 为需要注册的事件类型
func NewServer(cfg config.RedisConfig, exec dispatch.Executor, eventTypes []string, logger *zap.Logger) *Server {
	srv := asynq.NewServer(
		queue.RedisConnOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueName: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	h := handlers.NewLarkHandler(exec, logger)
	for _, eventType := range eventTypes {
		mux.HandleFunc(tasks.TypeOf(eventType), h.HandleTask)
	}
	mux.HandleFunc(tasks.TypeCheckCallback, h.HandleTask)
	mux.HandleFunc(tasks.TypeExecuteCallback, h.HandleTask)
	// 未注册的事件类型按最长前缀落到这里，由执行器记录后忽略
	mux.HandleFunc(tasks.TypePrefix, h.HandleTask)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
