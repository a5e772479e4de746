package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/internal/stream"
	"github.com/sauruslabs/osseus/internal/ui"
	"github.com/sauruslabs/osseus/pkg/log"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:           "ask [prompt]",
	Short:         "Send a single prompt and stream the answer",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a := newApp(ctx)
		defer a.Shutdown(ctx)

		prompt := strings.Join(args, " ")
		userMsg := core.Message{Role: core.RoleUser, Content: prompt}
		a.conv.Append(userMsg)

		ch, err := a.engine.StreamChat(ctx, core.Request{
			Model:    modelFlag,
			Messages: a.conv.Messages(),
			Stream:   true,
		})
		if err != nil {
			return err
		}

		ctrl := stream.NewController(stream.DefaultPolicy(), func(f stream.Flush) {
			if f.Thinking != "" {
				fmt.Fprint(os.Stderr, ui.ThinkingStyle.Render(f.Thinking))
			}
			if f.Content != "" {
				fmt.Print(f.Content)
			}
		})

		var streamErr error
		for chunk := range ch {
			switch {
			case chunk.Err != nil:
				streamErr = chunk.Err
			case chunk.Invocation != nil:
				// No executor wired for this call; report and stop.
				fmt.Fprintln(os.Stderr, ui.ToolStyle.Render(
					fmt.Sprintf("model requested tool %s(%s)", chunk.Invocation.Name, chunk.Invocation.Arguments)))
			default:
				ctrl.Write(chunk.Text)
			}
		}
		ctrl.Close()
		fmt.Println()

		if streamErr != nil {
			log.FromCtx(ctx).Error().Err(streamErr).Msg("generation failed")
			return streamErr
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
