package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"cohort2sql-go/internal/app"
	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/render"
	"cohort2sql-go/internal/session"
)

// runtime 一次命令执行所用的应用和会话
type runtime struct {
	app     *app.App
	session *session.Session
}

// open 加载配置，连接数据库并创建一个会话。
// 会话创建时应用的角色由 --persona 覆盖
func open(ctx context.Context, opts *options, out io.Writer) (*runtime, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	cfg.Log.Level = opts.logLevel
	if opts.persona != "" {
		cfg.Session.DefaultPersona = opts.persona
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	spinner := newSpinner(out, opts)
	spinner.Start("Connecting to database...")
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		spinner.Stop()
		return nil, err
	}
	go a.Cache.Start()

	s, notice, err := a.Sessions.Create(ctx)
	spinner.Stop()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	render.Notice(out, notice)
	return &runtime{app: a, session: s}, nil
}

// Close 释放会话连接和连接池
func (r *runtime) Close() {
	_ = r.app.Sessions.Close(r.session.ID())
	r.app.Close()
	_ = r.app.Logger.Sync()
}

func newSpinner(out io.Writer, opts *options) *render.Spinner {
	return render.NewSpinner(out, !opts.plain && isTerminal())
}

func disableStyling() {
	pterm.DisableStyling()
}
