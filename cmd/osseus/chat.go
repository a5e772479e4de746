package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/internal/stream"
	"github.com/sauruslabs/osseus/internal/ui"
	"github.com/sauruslabs/osseus/pkg/conv"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Start an interactive chat session",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a := newApp(ctx)
		defer a.Shutdown(ctx)

		p := tea.NewProgram(newChatModel(ctx, a), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatEvent carries one stream update from the generation goroutine into
// the bubbletea loop.
type chatEvent struct {
	flush      stream.Flush
	invocation *core.ToolInvocation
	err        error
}

type streamDoneMsg struct{}

type chatModel struct {
	ctx context.Context
	app *app

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	transcript strings.Builder
	response   strings.Builder
	streaming  bool
	events     chan chatEvent
	err        error
	ready      bool
}

func newChatModel(ctx context.Context, a *app) *chatModel {
	ta := textarea.New()
	ta.Placeholder = "Send a message (ctrl+c to quit)"
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &chatModel{
		ctx:      ctx,
		app:      a,
		textarea: ta,
		spinner:  sp,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := m.textarea.Height() + 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.textarea.SetWidth(msg.Width)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.streaming {
				input := strings.TrimSpace(m.textarea.Value())
				if input != "" {
					return m, m.send(input)
				}
			}
		}

	case chatEvent:
		if msg.err != nil {
			m.err = msg.err
			m.appendLine(ui.ErrorStyle.Render("error: " + msg.err.Error()))
		}
		if msg.invocation != nil {
			m.appendLine(ui.ToolStyle.Render(
				fmt.Sprintf("[tool] %s %s", msg.invocation.Name, msg.invocation.Arguments)))
		}
		if msg.flush.Thinking != "" {
			m.appendLine(ui.ThinkingStyle.Render(msg.flush.Thinking))
		}
		if msg.flush.Content != "" {
			m.response.WriteString(msg.flush.Content)
			m.refreshViewport()
		}
		return m, m.listen()

	case streamDoneMsg:
		m.streaming = false
		if m.response.Len() > 0 {
			m.transcript.WriteString(conv.MarkdownToText([]byte(m.response.String())))
			m.transcript.WriteString("\n\n")
			m.response.Reset()
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.streaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var taCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	cmds = append(cmds, taCmd)

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) View() string {
	if !m.ready {
		return "loading..."
	}
	status := ""
	if m.streaming {
		status = m.spinner.View() + " generating"
	}
	return m.viewport.View() + "\n" + status + "\n" + m.textarea.View()
}

func (m *chatModel) send(input string) tea.Cmd {
	m.appendLine(ui.PromptStyle.Render("> ") + input)
	m.textarea.Reset()
	m.streaming = true
	m.err = nil
	m.events = make(chan chatEvent, 16)

	m.app.conv.Append(core.Message{Role: core.RoleUser, Content: input})

	events := m.events
	go func() {
		defer close(events)

		ch, err := m.app.engine.StreamChat(m.ctx, core.Request{
			Model:    modelFlag,
			Messages: m.app.conv.Messages(),
			Stream:   true,
		})
		if err != nil {
			events <- chatEvent{err: err}
			return
		}

		ctrl := stream.NewController(stream.DefaultPolicy(), func(f stream.Flush) {
			events <- chatEvent{flush: f}
		})
		for chunk := range ch {
			switch {
			case chunk.Err != nil:
				events <- chatEvent{err: chunk.Err}
			case chunk.Invocation != nil:
				events <- chatEvent{invocation: chunk.Invocation}
			default:
				ctrl.Write(chunk.Text)
			}
		}
		ctrl.Close()
	}()

	return tea.Batch(m.listen(), m.spinner.Tick)
}

func (m *chatModel) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamDoneMsg{}
		}
		return ev
	}
}

func (m *chatModel) appendLine(line string) {
	m.transcript.WriteString(line)
	m.transcript.WriteString("\n")
	m.refreshViewport()
}

func (m *chatModel) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript.String() + m.response.String())
	m.viewport.GotoBottom()
}
