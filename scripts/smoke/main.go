// Command smoke performs one round trip against a running server: it
// registers a throwaway user, creates a workspace and channel, subscribes to
// the push socket, posts a message over REST and waits for its echo.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"crewchat/sdk"
)

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	suffix := uuid.NewString()[:8]
	api := sdk.NewAPI(*addr)

	user, err := api.Register(ctx, "smoke-"+suffix, "smoke-pass-123")
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	workspace, err := api.CreateWorkspace(ctx, "smoke-"+suffix)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	channel, err := api.CreateChannel(ctx, workspace.ID, "general")
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	client, err := sdk.Dial(ctx, *addr, workspace.ID, api.Token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	// Post only after the subscription ack: the broadcast reaches subscribed
	// connections, not ones still mid-handshake.
	identifier := "tmp-" + uuid.NewString()
	posted := sdk.Message{}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no echo within %s", *timeout)
		case ev, ok := <-client.Events():
			if !ok {
				return fmt.Errorf("connection closed: %w", client.Err())
			}
			switch ev := ev.(type) {
			case sdk.Connected:
				fmt.Printf("connected: %s\n", ev.ConnectionID)
			case sdk.Subscribed:
				fmt.Printf("subscribed to workspace %d\n", ev.WorkspaceID)
				posted, err = api.PostMessage(ctx, channel.ID, *text, identifier, 0)
				if err != nil {
					return fmt.Errorf("post message: %w", err)
				}
				fmt.Printf("posted message %d\n", posted.ServerID)
			case sdk.MessageCreated:
				if ev.Identifier != identifier {
					continue
				}
				if ev.MessageID != posted.ServerID || ev.UserID != user.ID || ev.Content != *text {
					return fmt.Errorf("echo mismatch: %+v", ev)
				}
				fmt.Printf("echo received: message %d round-tripped\n", ev.MessageID)
				return nil
			}
		}
	}
}
