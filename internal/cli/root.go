// Package cli 命令行入口：单次提问、交互式对话、数据目录和看板。
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// options 全局参数
type options struct {
	envFile  string
	persona  string
	logLevel string
	plain    bool
}

// NewRootCommand 创建根命令及全部子命令
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "cohort2sql",
		Short: "Ask questions about CIBMTR and OMOP cohort data in plain English",
		Long: `cohort2sql turns natural-language questions into PostgreSQL queries over the
CIBMTR and OMOP schemas, runs them under the selected access persona and
shows the results as tables and bar charts.

Commands:
  cohort2sql ask "<question>"   Answer one question and exit
  cohort2sql chat               Interactive conversation
  cohort2sql catalog            Show the data catalog
  cohort2sql dashboard          Show the dashboard panels`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"Environment file loaded before reading configuration")
	root.PersistentFlags().StringVarP(&opts.persona, "persona", "p", "",
		"Access persona for the session: CLINICAL_RESEARCHER, DATA_ENGINEER")
	root.PersistentFlags().StringVar(&opts.logLevel, "log", "warn",
		"Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.plain, "plain", false,
		"Disable colors and the animated spinner")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if opts.plain || !isTerminal() {
			disableStyling()
		}
	}

	root.AddCommand(
		newAskCommand(opts),
		newChatCommand(opts),
		newCatalogCommand(),
		newDashboardCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute 运行命令行，Ctrl+C取消进行中的请求
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errAnswerFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
