package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/spf13/cobra"
)

func newChildrenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "children",
		Aliases: []string{"child"},
		Short:   "Manage the children on a parent account",
	}

	cmd.AddCommand(newChildrenListCmd())
	cmd.AddCommand(newChildrenShowCmd())
	cmd.AddCommand(newChildrenAddCmd())
	cmd.AddCommand(newChildrenRemoveCmd())
	return cmd
}

func newChildrenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				children, err := a.api.ListChildren(ctx)
				if err != nil {
					return err
				}
				if len(children) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No children yet. Add one with `zeyn children add`.")
					return nil
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tBORN\tDIAGNOSIS")
				for _, c := range children {
					born := "-"
					if c.BirthDate != nil {
						born = c.BirthDate.Format(time.DateOnly)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.DisplayName(), born, c.PrimaryDiagnosis)
				}
				return tw.Flush()
			})
		},
	}
}

func newChildrenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a child record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				c, err := a.api.GetChild(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", c.ID)
				fmt.Fprintf(out, "Name:      %s\n", c.DisplayName())
				if c.BirthDate != nil {
					fmt.Fprintf(out, "Born:      %s\n", c.BirthDate.Format(time.DateOnly))
				}
				if c.PrimaryDiagnosis != "" {
					fmt.Fprintf(out, "Diagnosis: %s\n", c.PrimaryDiagnosis)
				}
				if c.CommunicationMethod != "" {
					fmt.Fprintf(out, "Talks via: %s\n", c.CommunicationMethod)
				}
				if c.CurrentGoals != "" {
					fmt.Fprintf(out, "Goals:     %s\n", c.CurrentGoals)
				}
				return nil
			})
		},
	}
}

func newChildrenAddCmd() *cobra.Command {
	var (
		child     domain.Child
		birthDate string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a child",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if child.FirstName == "" {
				return errors.New("--first-name is required")
			}
			if birthDate != "" {
				d, err := time.Parse(time.DateOnly, birthDate)
				if err != nil {
					return fmt.Errorf("--birth-date must be YYYY-MM-DD: %w", err)
				}
				child.BirthDate = &d
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				created, err := a.api.CreateChild(ctx, child)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.DisplayName(), created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&child.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&child.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&child.PrimaryDiagnosis, "diagnosis", "", "primary diagnosis")
	cmd.Flags().StringVar(&child.CommunicationMethod, "communication", "", "communication method")
	cmd.Flags().StringVar(&child.CurrentGoals, "goals", "", "current goals")
	return cmd
}

func newChildrenRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a child record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				if err := a.api.DeleteChild(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
