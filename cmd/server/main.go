package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"larkticket/internal/config"
	"larkticket/internal/logger"
)

// rootOptions 全局命令行参数
type rootOptions struct {
	env        string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "lark-ticket",
		Short:        "飞书审批回调中转服务",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	defaultEnv := os.Getenv("APP_ENV")
	if defaultEnv == "" {
		defaultEnv = "dev"
	}
	root.PersistentFlags().StringVar(&opts.env, "env", defaultEnv, "配置环境名，对应 config/<env>.yaml")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径，设置后忽略 --env")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newDecryptCmd(opts),
		newEncryptCmd(opts),
	)
	return root
}

// bootstrap 加载 .env、配置与日志
func bootstrap(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	loadEnvFile()

	cfg, err := config.Load(opts.env, opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.Replace(l)
	return cfg, l, nil
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件，已存在的环境变量不会被覆盖
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "加载环境变量文件 %s 失败: %v\n", path, err)
		}
	}
}

// resolveEnvPath 从当前工作目录向上查找 .env
func resolveEnvPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := filepath.Clean(wd)
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
