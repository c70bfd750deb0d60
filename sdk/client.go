package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const defaultEventBuffer = 64

// Client is a live push subscription to one workspace. A single reader
// goroutine decodes incoming frames into the Events channel; the server
// never reconnects for you, so when Events closes, dial again if you still
// care.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	log    zerolog.Logger

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// DialOptions tweak the subscription; the zero value works.
type DialOptions struct {
	// Logger receives debug lines for skipped frames. Nop when unset.
	Logger *zerolog.Logger
	// Buffer sizes the Events channel. Defaults to 64.
	Buffer int
}

// Dial opens the push connection for one workspace. baseURL is the plain
// HTTP address of the server ("http://host:port"); the token is the value
// returned by Login or Register.
func Dial(ctx context.Context, baseURL string, workspaceID int64, token string, opts *DialOptions) (*Client, error) {
	endpoint, err := wsEndpoint(baseURL, workspaceID, token)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	buffer := defaultEventBuffer
	if opts != nil {
		if opts.Logger != nil {
			logger = *opts.Logger
		}
		if opts.Buffer > 0 {
			buffer = opts.Buffer
		}
	}

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, buffer),
		log:    logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields decoded pushes, the CONNECTED and SUBSCRIBED acks included.
// The channel closes when the connection ends; Err then reports why.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close ends the subscription. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close(websocket.StatusNormalClosure, "client closed")
	})
	<-c.done
	return err
}

// Err reports why the reader stopped. It blocks until the Events channel is
// closed and returns nil when the client itself hung up.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

func (c *Client) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			if !c.closing() {
				c.err = err
			}
			return
		}
		ev, err := DecodeFrame(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("skipping frame")
			continue
		}
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}

func (c *Client) closing() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

func wsEndpoint(baseURL string, workspaceID int64, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("workspaceId", strconv.FormatInt(workspaceID, 10))
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// User mirrors the REST user body.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Status      string `json:"status"`
}

// Workspace mirrors the REST workspace body.
type Workspace struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"ownerId"`
}

// Channel mirrors the REST channel body.
type Channel struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspaceId"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	ChannelType string `json:"channelType"`
	Archived    bool   `json:"archived"`
}

// API is a minimal REST client covering the endpoints the reconciler and the
// terminal client depend on. Login or Register stores the session token for
// subsequent calls.
type API struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewAPI builds an API client for the server at baseURL.
func NewAPI(baseURL string) *API {
	return &API{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

type authBody struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account, stores the session token and returns the new
// user.
func (a *API) Register(ctx context.Context, username, password string) (User, error) {
	var body authBody
	if err := a.do(ctx, http.MethodPost, "/api/register", credentials{username, password}, &body); err != nil {
		return User{}, err
	}
	a.Token = body.Token
	return body.User, nil
}

// Login authenticates, stores the session token and returns the user.
func (a *API) Login(ctx context.Context, username, password string) (User, error) {
	var body authBody
	if err := a.do(ctx, http.MethodPost, "/api/login", credentials{username, password}, &body); err != nil {
		return User{}, err
	}
	a.Token = body.Token
	return body.User, nil
}

// ListWorkspaces returns the workspaces the user belongs to.
func (a *API) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := a.do(ctx, http.MethodGet, "/api/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWorkspace creates a workspace owned by the current user.
func (a *API) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	var out Workspace
	payload := map[string]string{"name": name}
	if err := a.do(ctx, http.MethodPost, "/api/workspaces", payload, &out); err != nil {
		return Workspace{}, err
	}
	return out, nil
}

// ListChannels returns the active channels of a workspace.
func (a *API) ListChannels(ctx context.Context, workspaceID int64) ([]Channel, error) {
	var out []Channel
	path := fmt.Sprintf("/api/workspaces/%d/channels", workspaceID)
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChannel creates a public channel in the workspace.
func (a *API) CreateChannel(ctx context.Context, workspaceID int64, name string) (Channel, error) {
	var out Channel
	path := fmt.Sprintf("/api/workspaces/%d/channels", workspaceID)
	payload := map[string]string{"name": name}
	if err := a.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return Channel{}, err
	}
	return out, nil
}

// FetchHistory returns one page of a channel or thread, oldest first. Pass
// parentMessageID 0 for the root view and before 0 for the newest page.
func (a *API) FetchHistory(ctx context.Context, channelID, parentMessageID int64, limit int, before int64) ([]Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if parentMessageID > 0 {
		q.Set("parentMessageId", strconv.FormatInt(parentMessageID, 10))
	}
	path := fmt.Sprintf("/api/channels/%d/messages", channelID)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []Message
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type postMessageRequest struct {
	Content         string `json:"content"`
	ParentMessageID int64  `json:"parentMessageId,omitempty"`
	Identifier      string `json:"identifier,omitempty"`
}

// PostMessage submits content under the given correlation identifier. The
// server echoes the identifier inside the MESSAGE_CREATED push so the
// Timeline can confirm the matching optimistic entry.
func (a *API) PostMessage(ctx context.Context, channelID int64, content, identifier string, parentMessageID int64) (Message, error) {
	var out Message
	path := fmt.Sprintf("/api/channels/%d/messages", channelID)
	payload := postMessageRequest{Content: content, ParentMessageID: parentMessageID, Identifier: identifier}
	if err := a.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	client := a.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
