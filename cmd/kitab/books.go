package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/svcctx"
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List and inspect ingested books",
}

var booksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		books, err := svcctx.StoreFrom(ctx).ListBooks(ctx)
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}
		return printResult(cmd, books)
	},
}

var booksSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search books by title, author or subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		books, err := svcctx.StoreFrom(ctx).SearchBooks(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to search books: %w", err)
		}
		return printResult(cmd, books)
	},
}

var booksShowCmd = &cobra.Command{
	Use:   "show <book-id>",
	Short: "Show a book's metadata and chapter outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book, err := svcctx.StoreFrom(ctx).GetBook(ctx, args[0])
		if err != nil {
			return fmt.Errorf("book %s: %w", args[0], err)
		}
		return printResult(cmd, book)
	},
}

var booksStatusCmd = &cobra.Command{
	Use:   "status <book-id>",
	Short: "Show how many pages of a book are stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		status, err := svcctx.ProcessorFrom(ctx).Status(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, status)
	},
}

func init() {
	booksCmd.AddCommand(booksListCmd)
	booksCmd.AddCommand(booksSearchCmd)
	booksCmd.AddCommand(booksShowCmd)
	booksCmd.AddCommand(booksStatusCmd)

	rootCmd.AddCommand(booksCmd)
}
