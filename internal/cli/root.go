package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"wisefido-schedule/internal/app"
	"wisefido-schedule/internal/config"

	"owl-common/logger"

	"github.com/spf13/cobra"
)

// AppFactory 按需构建依赖（测试中替换为内存实现）
type AppFactory func(ctx context.Context) (*app.App, error)

// options 命令共享的全局参数
type options struct {
	tenantID string
	newApp   AppFactory
}

// DefaultAppFactory 从环境变量/配置文件装配依赖
func DefaultAppFactory(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Level, "console", "schedulectl")
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

// NewRootCmd 创建 schedulectl 根命令
func NewRootCmd(newApp AppFactory) *cobra.Command {
	opts := &options{newApp: newApp}

	root := &cobra.Command{
		Use:   "schedulectl",
		Short: "Operate recurring schedule series",
		Long: `schedulectl runs schedule engine operations against the configured database.

Configuration is read from the environment (DB_*, REDIS_*, LOCK_BACKEND, AUDIT_SINK)
and optionally from the YAML file named by SCHEDULE_CONFIG_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&opts.tenantID, "tenant", "", "Tenant ID")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeriesCmd(opts))
	root.AddCommand(newConflictCmd(opts))
	return root
}

// Execute 运行 schedulectl
func Execute() error {
	return NewRootCmd(DefaultAppFactory).Execute()
}

func (o *options) requireTenant() error {
	if o.tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	return nil
}

// withApp 构建依赖、执行 fn 后释放连接
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if err := o.requireTenant(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
