package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cohort2sql-go/internal/persona"
	"cohort2sql-go/internal/render"
	"cohort2sql-go/internal/session"
)

const prompt = "cohort2sql> "

const chatHelp = `Type a question, or one of:
  /examples          list suggested questions
  /examples <n>      ask suggested question n
  /persona           list personas
  /persona <id>      switch persona
  /history           show the conversation
  /dashboard         show the dashboard panels
  /refresh           reload the dashboard panels
  /help              show this help
  /quit              leave`

func newChatCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := open(cmd.Context(), opts, out)
			if err != nil {
				return err
			}
			defer rt.Close()

			chat := NewChat(rt.session, cmd.InOrStdin(), out, newSpinner(out, opts))
			return chat.Run(cmd.Context())
		},
	}
}

// Chat 交互式对话，一行输入是一个问题或一个斜杠命令
type Chat struct {
	session *session.Session
	in      *bufio.Scanner
	out     io.Writer
	spinner *render.Spinner
}

// NewChat 创建交互式对话
func NewChat(s *session.Session, in io.Reader, out io.Writer, spinner *render.Spinner) *Chat {
	return &Chat{
		session: s,
		in:      bufio.NewScanner(in),
		out:     out,
		spinner: spinner,
	}
}

// Run 读取输入直到EOF、/quit或ctx取消
func (c *Chat) Run(ctx context.Context) error {
	render.Access(c.out, c.session.Access())
	fmt.Fprintln(c.out, "Type /help for commands.")

	for {
		fmt.Fprint(c.out, prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}
		if c.Handle(ctx, c.in.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Handle 处理一行输入，返回true表示退出
func (c *Chat) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.ask(ctx, line, func(ctx context.Context) (*session.Turn, error) {
			return c.session.Ask(ctx, line, session.SourceFreeText)
		})
		return false
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/examples":
		c.examples(ctx, arg)
	case "/persona":
		c.persona(ctx, arg)
	case "/history":
		render.History(c.out, c.session.Controller().Snapshot())
	case "/dashboard":
		render.Dashboard(c.out, c.session.View())
	case "/refresh":
		c.spinner.Start("Refreshing dashboard...")
		view, err := c.session.Reload(ctx)
		c.spinner.Stop()
		if err != nil {
			render.Notice(c.out, err.Error())
			break
		}
		render.Dashboard(c.out, view)
	default:
		render.Notice(c.out, fmt.Sprintf("Unknown command: %s (type /help)", name))
	}
	return false
}

func (c *Chat) examples(ctx context.Context, arg string) {
	if arg == "" {
		render.Examples(c.out, session.Examples())
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		render.Notice(c.out, "Example number must be an integer: "+arg)
		return
	}
	// 用户看到的编号从1开始
	text, err := session.Example(n - 1)
	if err != nil {
		render.Notice(c.out, err.Error())
		return
	}
	c.ask(ctx, text, func(ctx context.Context) (*session.Turn, error) {
		return c.session.AskExample(ctx, n-1)
	})
}

func (c *Chat) persona(ctx context.Context, arg string) {
	if arg == "" {
		render.Personas(c.out, c.session.Access().Persona.ID)
		return
	}

	c.spinner.Start("Switching persona...")
	result, err := c.session.SwitchPersona(ctx, strings.ToUpper(arg))
	c.spinner.Stop()
	if err != nil {
		render.Notice(c.out, err.Error())
		if errors.Is(err, persona.ErrUnknownPersona) {
			render.Personas(c.out, c.session.Access().Persona.ID)
		}
		return
	}
	render.Notice(c.out, result.Notice)
	render.Access(c.out, result.Access)
}

func (c *Chat) ask(ctx context.Context, text string, submit func(context.Context) (*session.Turn, error)) {
	render.Turn(c.out, &session.Turn{Role: session.RoleUser, Content: text})

	c.spinner.Start("Generating query...")
	turn, err := submit(ctx)
	c.spinner.Stop()
	if err != nil {
		render.Notice(c.out, err.Error())
		return
	}
	render.Turn(c.out, turn)
}
