package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/zeyn/internal/chat"
	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/soyeahso/zeyn/internal/tui"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		childID string
		title   string
		plain   bool
	)

	cmd := &cobra.Command{
		Use:   "chat [conversation-id]",
		Short: "Chat with the Zeyn assistant",
		Long: "Opens a conversation and streams the assistant's replies as they are generated.\n" +
			"Pass a conversation id, or --child to open (or create) that child's conversation.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && childID == "" {
				return errors.New("pass a conversation id or --child")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, func(_ context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}

				conversationID := ""
				if len(args) == 1 {
					conversationID = args[0]
				} else {
					id, err := chat.NewConversations(a.api, a.log.Sub("chat")).Ensure(ctx, childID, title)
					if err != nil {
						return err
					}
					conversationID = id
				}

				session := a.newSession()
				defer func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					session.Close(closeCtx)
				}()

				if err := session.Subscribe(ctx, conversationID); err != nil {
					a.log.Warn().Err(err).Msg("history unavailable")
				}

				if plain {
					return runPlainChat(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
				}
				label := title
				if label == "" {
					label = "Zeyn · " + conversationID
				}
				return tui.Run(ctx, session, label)
			})
		},
	}

	cmd.Flags().StringVar(&childID, "child", "", "open the conversation of this child, creating it if needed")
	cmd.Flags().StringVar(&title, "title", "", "title for a newly created conversation")
	cmd.Flags().BoolVar(&plain, "plain", false, "line-based chat instead of the full-screen interface")
	return cmd
}

// chatSession is the part of *chat.Session the plain chat loop uses.
type chatSession interface {
	Snapshot() chat.Snapshot
	Observe(f func(chat.Snapshot)) (cancel func())
	Send(ctx context.Context, text string) error
	LoadMore(ctx context.Context) error
}

// runPlainChat reads lines from in and streams replies to out until EOF,
// "/quit" or ctx is done. "/more" loads older history.
func runPlainChat(ctx context.Context, s chatSession, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPlainPrinter(out)
	p.update(s.Snapshot())
	stop := s.Observe(p.update)
	defer stop()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/more":
				if err := s.LoadMore(ctx); err != nil {
					p.printf("! %v\n", err)
				}
				continue
			}
			if err := s.Send(ctx, line); err != nil {
				p.printf("! %v\n", err)
			}
		}
	}
}

// plainPrinter turns session snapshots into an append-only transcript.
type plainPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]domain.DeliveryStatus
	live string
}

func newPlainPrinter(out io.Writer) *plainPrinter {
	return &plainPrinter{out: out, seen: make(map[string]domain.DeliveryStatus)}
}

func (p *plainPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *plainPrinter) update(snap chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range snap.Messages {
		status, printed := p.seen[m.ID]
		switch {
		case !printed && m.Role == domain.RoleAssistant && p.live != "":
			// already streamed; just end the line
			fmt.Fprintln(p.out)
			p.live = ""
		case !printed && m.Role == domain.RoleUser:
			// the user typed it; only report failures below
		case !printed:
			fmt.Fprintf(p.out, "%s: %s\n", speaker(m.Role), m.Content)
		}
		if m.Status == domain.DeliveryFailed && status != domain.DeliveryFailed {
			fmt.Fprintf(p.out, "! not delivered: %s\n", m.Content)
		}
		p.seen[m.ID] = m.Status
	}

	switch {
	case snap.Live == "":
		if p.live != "" {
			// generation failed mid-line
			fmt.Fprintln(p.out)
		}
		p.live = ""
	case strings.HasPrefix(snap.Live, p.live):
		if p.live == "" {
			fmt.Fprint(p.out, "Zeyn: ")
		}
		fmt.Fprint(p.out, snap.Live[len(p.live):])
		p.live = snap.Live
	}
}

func speaker(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return "You"
	case domain.RoleSystem:
		return "System"
	}
	return "Zeyn"
}
