package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agrocredit/agrolend/internal/domain"
)

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().String("amount", "", "Loan amount")
	estimateCmd.Flags().Int("term", 12, "Term in months")
	estimateCmd.MarkFlagRequired("amount")
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show the non-binding monthly payment for a loan",
	Args:  cobra.NoArgs,
	RunE:  runEstimate,
}

func runEstimate(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("amount")
	term, _ := cmd.Flags().GetInt("term")

	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return err
	}
	if !domain.ValidTerm(term) {
		return fmt.Errorf("%w: %d months (choose from %v)", domain.ErrInvalidTerm, term, domain.TermOptions)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Amount:   $%s\n", humanize.FormatFloat("#,###.##", amount))
	fmt.Fprintf(out, "Term:     %d months\n", term)
	fmt.Fprintf(out, "Rate:     %.0f%%\n", domain.NominalAnnualRate*100)
	fmt.Fprintf(out, "Monthly:  $%s\n", humanize.FormatFloat("#,###.##", domain.EstimateMonthlyPayment(amount, term)))
	return nil
}
