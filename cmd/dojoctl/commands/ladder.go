package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dojo-hub/dojo-management/internal/app"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

func ladderCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "ladder [youth|adult]",
		Short:     "Print the grade ladder with its requirements",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(grade.CategoryYouth), string(grade.CategoryAdult)},
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := []grade.Category{grade.CategoryYouth, grade.CategoryAdult}
			if len(args) == 1 {
				categories = []grade.Category{grade.Category(args[0])}
			}
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				ladders := make([]query.LadderDTO, 0, len(categories))
				for _, cat := range categories {
					l, err := a.Ladder.Handle(cat)
					if err != nil {
						return err
					}
					ladders = append(ladders, l)
				}
				if len(ladders) == 1 {
					return c.print(cmd, ladders[0])
				}
				return c.print(cmd, ladders)
			})
		},
	}
	return cmd
}

func estimateCmd(c *cli) *cobra.Command {
	var (
		baseline string
		months   int
		credits  int
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the exam date for a baseline and a minimum time in grade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseline == "" {
				return errors.New("--baseline is required")
			}
			from, err := timeutil.ParseDate(baseline)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), false, func(a *app.App) error {
				est, err := a.Estimate.Handle(query.EstimateQuery{
					Baseline:         from,
					RequiredMonths:   months,
					CreditsRemaining: credits,
				})
				if err != nil {
					return err
				}
				return c.print(cmd, est)
			})
		},
	}
	cmd.Flags().StringVar(&baseline, "baseline", "", "start of time in grade, YYYY-MM-DD")
	cmd.Flags().IntVar(&months, "months", 0, "minimum months in grade")
	cmd.Flags().IntVar(&credits, "credits", 0, "attendance credits still missing")
	return cmd
}
