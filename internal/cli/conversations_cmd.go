package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/zeyn/internal/api"
	"github.com/soyeahso/zeyn/internal/chat"
	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/spf13/cobra"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage Zeyn assistant conversations",
	}

	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsCreateCmd())
	cmd.AddCommand(newConversationsRenameCmd())
	cmd.AddCommand(newConversationsArchiveCmd())
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				convs := chat.NewConversations(a.api, a.log.Sub("chat"))
				if err := convs.Refresh(ctx); err != nil {
					return err
				}
				items := convs.Items()
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet. Start one with `zeyn chat --child <id>`.")
					return nil
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tCHILD\tTITLE\tTURNS\tUPDATED")
				for _, c := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						c.ID, c.ChildID, c.Title, c.TurnCount, c.UpdatedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
}

func newConversationsCreateCmd() *cobra.Command {
	var childID, title string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the conversation for a child, or print the existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				id, err := chat.NewConversations(a.api, a.log.Sub("chat")).Ensure(ctx, childID, title)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&childID, "child", "", "child id (required)")
	cmd.Flags().StringVar(&title, "title", "", "conversation title")
	_ = cmd.MarkFlagRequired("child")
	return cmd
}

func newConversationsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			return patchConversation(cmd, args[0], domain.PatchConversationRequest{Title: &title},
				fmt.Sprintf("Renamed %s to %q", args[0], title))
		},
	}
}

func newConversationsArchiveCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archived := !undo
			done := "Archived " + args[0]
			if undo {
				done = "Restored " + args[0]
			}
			return patchConversation(cmd, args[0], domain.PatchConversationRequest{Archived: &archived}, done)
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "restore an archived conversation")
	return cmd
}

func patchConversation(cmd *cobra.Command, id string, patch domain.PatchConversationRequest, done string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireLogin(ctx); err != nil {
			return err
		}
		if err := a.api.PatchConversation(ctx, id, patch); err != nil {
			if api.StatusOf(err) == 404 {
				return fmt.Errorf("conversation %s not found", id)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), done)
		return nil
	})
}

func newMessagesCmd() *cobra.Command {
	var skip, take int

	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Print a page of conversation history, newest page first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				if take <= 0 {
					take = a.cfg.Chat.PageSize
				}
				msgs, err := a.api.GetMessages(ctx, args[0], skip, take)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					printMessage(cmd, m)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "messages to skip, counted from the newest")
	cmd.Flags().IntVar(&take, "take", 0, "page size (default chat.pageSize)")
	return cmd
}

func printMessage(cmd *cobra.Command, m domain.Message) {
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), speaker(m.Role), m.Content)
}
