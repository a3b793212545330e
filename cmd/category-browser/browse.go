package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/category-browser/pkg/browse"
	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/spf13/cobra"
)

func newBrowseCmd(c *cli) *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "browse <category>",
		Short: "Print a category one page at a time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			category := strings.Join(args, " ")
			screen, err := a.opener().Open(ctx, category)
			if errors.Is(err, browse.ErrOffline) {
				fmt.Fprintln(c.out, "You are offline. Check your connection and try again.")
				return err
			}
			if err != nil {
				return err
			}
			defer screen.Close()

			printed := 0
			for loaded := 0; ; {
				if err := screen.Wait(ctx); err != nil {
					return err
				}
				state := screen.State()
				printCards(c.out, state.Items[printed:], printed)
				printed = len(state.Items)

				if state.Err != nil {
					return state.Err
				}
				loaded++
				if state.EndReached {
					fmt.Fprintf(c.out, "-- end of %s (%d items) --\n", category, printed)
					return nil
				}
				if pages > 0 && loaded >= pages {
					fmt.Fprintf(c.out, "-- %d items shown, more available --\n", printed)
					return nil
				}
				if printed == 0 || !screen.OnItemRendered(printed-1) {
					return nil
				}
			}
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to show (0 for all)")
	return cmd
}

func printCards(w io.Writer, items []catalog.Item, offset int) {
	for i, item := range items {
		card := browse.CardFor(item)
		fmt.Fprintf(w, "%4d. %s\n", offset+i+1, card.Title)
		fmt.Fprintf(w, "      %s | %s\n", card.Authors, card.Languages)
		if card.Subjects != "" {
			fmt.Fprintf(w, "      %s\n", card.Subjects)
		}
	}
}
