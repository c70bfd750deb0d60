// Command chat is a line-oriented terminal client. It logs in (registering
// on first use), joins a workspace and channel, then renders the live
// timeline: optimistic entries appear immediately and confirm when the
// server echo arrives.
//
// Commands: plain text posts a message, /thread <messageId> opens a thread,
// /back returns to the channel, /retry re-sends the last failed message.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"crewchat/sdk"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	username := flag.String("user", "cli-user", "username")
	password := flag.String("pass", "cli-pass-123", "password")
	workspaceName := flag.String("workspace", "general", "workspace to join or create")
	channelName := flag.String("channel", "general", "channel to join or create")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := sdk.NewAPI(*addr)
	user, err := api.Login(ctx, *username, *password)
	if err != nil {
		user, err = api.Register(ctx, *username, *password)
		if err != nil {
			return fmt.Errorf("login or register: %w", err)
		}
		fmt.Printf("registered %s\n", user.Username)
	}

	workspace, err := findOrCreateWorkspace(ctx, api, *workspaceName)
	if err != nil {
		return err
	}
	channel, err := findOrCreateChannel(ctx, api, workspace.ID, *channelName)
	if err != nil {
		return err
	}

	client, err := sdk.Dial(ctx, *addr, workspace.ID, api.Token, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	session := &session{
		api:      api,
		timeline: sdk.NewTimeline(user.ID),
		selfID:   user.ID,
		channel:  channel,
	}
	if err := session.openView(ctx, 0); err != nil {
		return err
	}

	fmt.Printf("joined #%s in %s as %s\n", channel.Name, workspace.Name, user.Username)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				if err := client.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			}
			session.handleEvent(ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			session.handleLine(ctx, line)
		case now := <-ticker.C:
			for _, failed := range session.timeline.ExpirePending(now) {
				session.lastFailed = failed.ClientTempID
				fmt.Printf("!! %q was not confirmed, type /retry to re-send\n", failed.Content)
			}
		}
	}
}

func findOrCreateWorkspace(ctx context.Context, api *sdk.API, name string) (sdk.Workspace, error) {
	workspaces, err := api.ListWorkspaces(ctx)
	if err != nil {
		return sdk.Workspace{}, err
	}
	for _, w := range workspaces {
		if w.Name == name {
			return w, nil
		}
	}
	return api.CreateWorkspace(ctx, name)
}

func findOrCreateChannel(ctx context.Context, api *sdk.API, workspaceID int64, name string) (sdk.Channel, error) {
	channels, err := api.ListChannels(ctx, workspaceID)
	if err != nil {
		return sdk.Channel{}, err
	}
	for _, c := range channels {
		if c.Name == name {
			return c, nil
		}
	}
	return api.CreateChannel(ctx, workspaceID, name)
}

// session holds the state of the open view.
type session struct {
	api      *sdk.API
	timeline *sdk.Timeline
	selfID   int64
	channel  sdk.Channel

	viewParent int64
	lastFailed string
}

// openView switches the timeline to the channel root or a thread and
// replays the fetched page.
func (s *session) openView(ctx context.Context, parentID int64) error {
	s.viewParent = parentID
	s.timeline.Open(s.channel.ID, parentID)
	history, err := s.api.FetchHistory(ctx, s.channel.ID, parentID, 50, 0)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	s.timeline.LoadHistory(history)
	for _, m := range s.timeline.Messages() {
		s.printMessage(m)
	}
	return nil
}

func (s *session) handleEvent(ev sdk.Event) {
	s.timeline.Apply(ev)
	switch ev := ev.(type) {
	case sdk.MessageCreated:
		if ev.ChannelID != s.channel.ID || ev.ParentMessageID != s.viewParent {
			return
		}
		for _, m := range s.timeline.Messages() {
			if m.ServerID == ev.MessageID {
				s.printMessage(m)
				return
			}
		}
	case sdk.ReactionAdded:
		fmt.Printf("** user %d reacted %s to #%d\n", ev.UserID, ev.Emoji, ev.MessageID)
	case sdk.ReactionRemoved:
		fmt.Printf("** user %d removed %s from #%d\n", ev.UserID, ev.Emoji, ev.MessageID)
	case sdk.ChannelCreated:
		fmt.Printf("** channel #%s created\n", ev.Name)
	case sdk.ChannelUpdated:
		fmt.Printf("** channel #%s updated\n", ev.Name)
	case sdk.ChannelArchived:
		fmt.Printf("** channel #%s archived\n", ev.Name)
	case sdk.UserStatusUpdate:
		fmt.Printf("** user %d is now %s\n", ev.UserID, ev.Status)
	case sdk.UserProfileUpdated:
		fmt.Printf("** user %d is now known as %s\n", ev.UserID, ev.DisplayName)
	}
}

func (s *session) handleLine(ctx context.Context, line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}

	switch {
	case text == "/back":
		if s.viewParent == 0 {
			return
		}
		if err := s.openView(ctx, 0); err != nil {
			log.Printf("open channel: %v", err)
		}
	case strings.HasPrefix(text, "/thread "):
		id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(text, "/thread ")), 10, 64)
		if err != nil || id <= 0 {
			fmt.Println("usage: /thread <messageId>")
			return
		}
		if err := s.openView(ctx, id); err != nil {
			log.Printf("open thread: %v", err)
		}
	case text == "/retry":
		entry, ok := s.timeline.Retry(s.lastFailed)
		if !ok {
			fmt.Println("nothing to retry")
			return
		}
		s.post(ctx, entry)
	default:
		entry := s.timeline.Compose(text)
		s.printMessage(entry)
		s.post(ctx, entry)
	}
}

// post sends the optimistic entry under its correlation id. Errors are only
// logged: the entry stays pending and the expiry ticker turns it into a
// retryable failure.
func (s *session) post(ctx context.Context, entry sdk.Message) {
	if _, err := s.api.PostMessage(ctx, s.channel.ID, entry.Content, entry.ClientTempID, entry.ParentMessageID); err != nil {
		log.Printf("post: %v", err)
	}
}

func (s *session) printMessage(m sdk.Message) {
	author := fmt.Sprintf("user %d", m.UserID)
	if m.UserID == s.selfID {
		author = "you"
	}
	var mark string
	switch {
	case m.Pending:
		mark = " (sending)"
	case m.Failed:
		mark = " (failed)"
	}
	fmt.Printf("[%s] %s: %s%s\n", m.PostedAt.Local().Format("15:04"), author, m.Content, mark)
}
