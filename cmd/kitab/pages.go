package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/normalize"
	"github.com/jackzampolin/kitab/internal/store"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Read stored pages",
}

var pagesGetCmd = &cobra.Command{
	Use:   "get <book-id> <page>",
	Short: "Get a stored page by physical or printed page number",
	Long: `Get a stored page.

The page number is physical (1-based position in the PDF) unless --logical
is given, in which case every stored page whose printed number matches is
returned. Arabic-Indic digits are accepted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := svcctx.StoreFrom(ctx)

		n, err := parsePageNumber(args[1])
		if err != nil {
			return err
		}
		logical, _ := cmd.Flags().GetBool("logical")
		raw, _ := cmd.Flags().GetBool("raw")

		if logical {
			pages, err := st.PagesByLogical(ctx, args[0], n)
			if err != nil {
				return fmt.Errorf("printed page %d: %w", n, err)
			}
			if len(pages) == 0 {
				return fmt.Errorf("printed page %d: %w", n, store.ErrNotFound)
			}
			if !raw {
				for i := range pages {
					pages[i].RawResponse = ""
				}
			}
			return printResult(cmd, pages)
		}

		page, err := st.PageByPhysical(ctx, args[0], n)
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		if !raw {
			page.RawResponse = ""
		}
		return printResult(cmd, page)
	},
}

// parsePageNumber accepts Western or Arabic-Indic digits.
func parsePageNumber(s string) (int, error) {
	n, err := strconv.Atoi(normalize.Digits(strings.TrimSpace(s), normalize.Western))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	return n, nil
}

func init() {
	pagesGetCmd.Flags().Bool("logical", false, "look up by printed page number")
	pagesGetCmd.Flags().Bool("raw", false, "include the raw oracle response")

	pagesCmd.AddCommand(pagesGetCmd)
	rootCmd.AddCommand(pagesCmd)
}
