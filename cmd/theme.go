package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mangatl/mangatl/internal/theme"
)

func newThemeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the light/dark theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store := theme.NewStore(a.cfg.ThemeFile)
			current := store.Load()

			if len(args) == 1 {
				var err error
				if args[0] == "toggle" {
					current, err = store.Toggle()
				} else {
					current, err = theme.Parse(args[0])
					if err == nil {
						err = store.Set(current)
					}
				}
				if err != nil {
					return err
				}
			}

			st := theme.StylesFor(current)
			fmt.Fprintln(cmd.OutOrStdout(), st.Title.Render(string(current)))
			return nil
		},
	}
	return cmd
}
