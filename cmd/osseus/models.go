package main

import (
	"fmt"

	"github.com/sauruslabs/osseus/internal/backend"
	"github.com/sauruslabs/osseus/internal/ui"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:           "models",
	Short:         "List models served by the configured backends",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a := newApp(ctx)
		defer a.Shutdown(ctx)

		for _, b := range a.router.Backends() {
			fmt.Println(ui.TitleStyle.Render(b.Name()))

			if !b.Available(ctx) {
				fmt.Println(ui.DescStyle.Render("  unavailable"))
				continue
			}

			lister, ok := b.(backend.ModelLister)
			if !ok {
				fmt.Println(ui.DescStyle.Render("  (no model listing)"))
				continue
			}

			models, err := lister.Models(ctx)
			if err != nil {
				fmt.Println(ui.ErrorStyle.Render("  " + err.Error()))
				continue
			}
			for _, m := range models {
				line := "  " + m.ID
				if m.ContextLength > 0 {
					line += ui.DescStyle.Render(fmt.Sprintf("  (ctx %d)", m.ContextLength))
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
