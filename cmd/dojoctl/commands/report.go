package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dojo-hub/dojo-management/internal/app"
	"github.com/dojo-hub/dojo-management/internal/application/query"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
)

func reportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <member-id>...",
		Short: "Print the progression report of one or more members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				reports := make([]progression.Report, 0, len(args))
				for _, id := range args {
					r, err := a.MemberReport.Handle(cmd.Context(), query.GetMemberReportQuery{MemberID: id, SkipCache: true})
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					reports = append(reports, r)
				}
				if len(reports) == 1 {
					return c.print(cmd, reports[0])
				}
				return c.print(cmd, reports)
			})
		},
	}
	return cmd
}

func rosterCmd(c *cli) *cobra.Command {
	var (
		category        string
		includeInactive bool
		limit           int
	)
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Partition the snapshot into ready, overdue, in-progress and max-grade members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				roster, err := a.RosterReport.Handle(cmd.Context(), query.GetRosterReportQuery{
					Category:        grade.Category(category),
					IncludeInactive: includeInactive,
					Limit:           limit,
					SkipCache:       true,
				})
				if err != nil {
					return err
				}
				return c.print(cmd, roster)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category (youth or adult)")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "also evaluate paused members")
	cmd.Flags().IntVar(&limit, "limit", 0, "evaluate at most this many members")
	return cmd
}

// validationResult is one line of the validate command output.
type validationResult struct {
	MemberID string `json:"member_id"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// errInvalidSnapshot makes validate exit non-zero after printing results.
var errInvalidSnapshot = errors.New("snapshot contains invalid member histories")

func validateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every member history in the snapshot against the grade ladder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app.App) error {
				members, err := a.Members.List(cmd.Context(), member.ListFilter{})
				if err != nil {
					return err
				}
				results := make([]validationResult, 0, len(members))
				failed := 0
				for _, m := range members {
					res := validationResult{MemberID: m.ID, Valid: true}
					if err := m.ValidateHistory(a.Catalog.Ladder); err != nil {
						res.Valid = false
						res.Error = err.Error()
						failed++
					}
					results = append(results, res)
				}
				if err := c.print(cmd, results); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%w: %d of %d", errInvalidSnapshot, failed, len(members))
				}
				return nil
			})
		},
	}
	return cmd
}
