package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/internal/rates"
	"github.com/Ouadii-Zine/financify/pkg/utils"
)

// --- Rates Command ---

var ratesCmd = &cobra.Command{
	Use:   "rates [book]",
	Short: "Fetch the latest reference rates",
	Long: `Fetch the latest fixing of every configured reference-rate feed.
With a book and --write, loans whose referenceIndex matches a fetched
index get their referenceRate updated and the book is saved in place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Rates.Feeds) == 0 {
			return errors.New("no reference rate feeds configured (rates.feeds)")
		}
		svc, err := rates.FromConfig(cfg.Rates, logger)
		if err != nil {
			return err
		}
		fetched, err := svc.Fetch(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Index\tRate\tAs of\tSource")
		for _, r := range fetched {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Index, utils.FormatPercent(r.Rate), utils.FormatDate(r.AsOf), r.Source)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		write, _ := cmd.Flags().GetBool("write")
		if len(args) == 0 {
			if write {
				return errors.New("--write needs a book")
			}
			return nil
		}
		book, err := loadBook(args[0])
		if err != nil {
			return err
		}
		n := rates.Apply(book.Loans, fetched)
		fmt.Printf("\n%d of %d loans matched a fetched index\n", n, len(book.Loans))
		if !write || n == 0 {
			return nil
		}
		if err := loanbook.Save(args[0], book); err != nil {
			return err
		}
		fmt.Printf("updated %s\n", args[0])
		return nil
	},
}

func init() {
	ratesCmd.Flags().Bool("write", false, "save updated reference rates into the book")
}
