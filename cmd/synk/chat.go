package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/scene"
)

var (
	chatLocation string
	chatUser     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Play a scene in the terminal",
	Long: `Start a scene at --location and talk to its characters.

Commands inside the scene:
  /react <character_id> <emoji>   react to that character's last reply (❤️ 💢 🔥 ⭐)
  /scene                          show attention, tension and focus
  /quit                           leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		application, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer application.Shutdown(context.Background())

		r := &repl{svc: application.Service(), user: chatUser, location: chatLocation, out: cmd.OutOrStdout(), styles: defaultStyles()}
		return r.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatLocation, "location", "l", "", "location id to play in (required)")
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "local", "user id")
	_ = chatCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(chatCmd)
}

// ── Styles ─────────────────────────────────────────────────────────────────────

type styles struct {
	Name     lipgloss.Style
	Action   lipgloss.Style
	Sub      lipgloss.Style
	Thought  lipgloss.Style
	Notice   lipgloss.Style
	Header   lipgloss.Style
	ErrorMsg lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Name:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Action:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#c9d1d9")),
		Sub:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6e7681")),
		Thought:  lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("#a371f7")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Header:   lipgloss.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#00ff9f")).Padding(0, 1),
		ErrorMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff7b72")),
	}
}

// ── REPL ───────────────────────────────────────────────────────────────────────

// replService is the part of the chat service the REPL drives.
type replService interface {
	Turn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResponse, error)
	React(ctx context.Context, req chat.ReactionRequest) (*chat.ReactionResponse, error)
	Scene(ctx context.Context, sessionID string) (*scene.Scene, error)
}

type repl struct {
	svc      replService
	user     string
	location string
	out      io.Writer
	styles   styles

	sessionID string
	last      *chat.TurnResponse
	lastMsg   string
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, r.styles.Header.Render("📍 "+r.location))
	fmt.Fprintln(r.out, r.styles.Notice.Render("/react <id> <emoji> · /scene · /quit"))

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := r.handle(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(r.out, r.styles.ErrorMsg.Render("⚠️ "+err.Error()))
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	switch {
	case strings.HasPrefix(line, "/react"):
		return r.react(ctx, strings.Fields(line)[1:])
	case line == "/scene":
		return r.showScene(ctx)
	case strings.HasPrefix(line, "/"):
		return fmt.Errorf("unknown command %s", strings.Fields(line)[0])
	}

	resp, err := r.svc.Turn(ctx, chat.TurnRequest{
		UserID:     r.user,
		LocationID: r.location,
		Message:    line,
		SessionID:  r.sessionID,
	})
	if err != nil {
		return err
	}
	r.sessionID, r.last, r.lastMsg = resp.SessionID, resp, line
	fmt.Fprint(r.out, r.renderTurn(resp))
	return nil
}

func (r *repl) react(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: /react <character_id> <emoji>")
	}
	if r.last == nil {
		return errors.New("nothing to react to yet")
	}
	var reply string
	for _, m := range r.last.MainResponses {
		if m.CharacterID == args[0] {
			reply = m.Message
		}
	}
	if reply == "" {
		return fmt.Errorf("%s did not speak last turn", args[0])
	}
	resp, err := r.svc.React(ctx, chat.ReactionRequest{
		UserID:            r.user,
		CharacterID:       args[0],
		TurnID:            r.last.TurnID,
		Emoji:             args[1],
		UserMessage:       r.lastMsg,
		CharacterResponse: reply,
	})
	if err != nil {
		return err
	}
	line := resp.Message
	if resp.Relationship != nil {
		line += fmt.Sprintf(" (친밀도 %.1f)", resp.Relationship.Intimacy)
	}
	fmt.Fprintln(r.out, r.styles.Notice.Render(line))
	return nil
}

func (r *repl) showScene(ctx context.Context) error {
	if r.sessionID == "" {
		return errors.New("the scene has not started yet")
	}
	sc, err := r.svc.Scene(ctx, r.sessionID)
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, r.renderScene(sc))
	return nil
}

func (r *repl) renderTurn(resp *chat.TurnResponse) string {
	var b strings.Builder
	for _, m := range resp.MainResponses {
		b.WriteString(r.styles.Name.Render(m.CharacterName))
		if m.Action != "" {
			b.WriteString(" " + r.styles.Action.Render(m.Action))
		}
		b.WriteString(" " + m.Message + "\n")
		if m.Thought != nil && m.Thought.Thought != "" {
			b.WriteString("  " + r.styles.Thought.Render("(속마음) "+m.Thought.Thought) + "\n")
		}
	}
	for _, s := range resp.SubReactions {
		b.WriteString(r.styles.Sub.Render(s.CharacterName+": "+s.Reaction) + "\n")
	}
	if len(resp.MainResponses) == 0 && len(resp.SubReactions) == 0 {
		b.WriteString(r.styles.Notice.Render("(아무도 반응하지 않았다)") + "\n")
	}
	return b.String()
}

func (r *repl) renderScene(sc *scene.Scene) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 긴장도 %d/10 · %s · %d턴\n", sc.Location, sc.Tension, sc.Atmosphere, sc.TotalTurns)
	if sc.CurrentFocus != "" {
		b.WriteString("🎯 " + sc.CurrentFocus + "\n")
	}
	for _, id := range sc.Roster {
		st := sc.States[id]
		line := fmt.Sprintf("  %s: %s", st.CharacterName, st.Attention)
		if st.AttentionTarget != "" {
			line += " → " + st.AttentionTarget
		}
		if st.Recent {
			line += " *"
		}
		b.WriteString(line + "\n")
	}
	return r.styles.Notice.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
