package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cohort2sql-go/internal/render"
	"cohort2sql-go/internal/session"
)

// errAnswerFailed 回答失败时以非零状态退出，错误已经输出
var errAnswerFailed = errors.New("question could not be answered")

func newAskCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Example: `  cohort2sql ask "Show average patient age by disease category"
  cohort2sql ask --persona DATA_ENGINEER "How many patients are in the person table?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := open(cmd.Context(), opts, out)
			if err != nil {
				return err
			}
			defer rt.Close()

			render.Access(out, rt.session.Access())
			turn, err := ask(cmd.Context(), out, rt.session, newSpinner(out, opts), strings.Join(args, " "), session.SourceFreeText)
			if err != nil {
				return err
			}
			if turn.Failed() {
				return errAnswerFailed
			}
			return nil
		},
	}
}

// ask 提交问题并输出回答轮次
func ask(ctx context.Context, out io.Writer, s *session.Session, spinner *render.Spinner, text string, source session.Source) (*session.Turn, error) {
	render.Turn(out, &session.Turn{Role: session.RoleUser, Content: text})

	spinner.Start("Generating query...")
	turn, err := s.Ask(ctx, text, source)
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	render.Turn(out, turn)
	return turn, nil
}
