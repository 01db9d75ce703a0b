package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/pkg/conquest"
)

// WSEvent mirrors handler.WSEvent for client-side deserialization.
type WSEvent struct {
	Type   string          `json:"type"`
	GameID string          `json:"game_id"`
	Data   json.RawMessage `json:"data"`
}

// Client is an HTTP+WebSocket client for a single remote player.
type Client struct {
	name     string
	baseURL  string
	token    string
	userID   string
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// NewClient creates a new bot client targeting the given server URL.
func NewClient(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan WSEvent, 64),
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the bot name.
func (c *Client) Name() string { return c.name }

// UserID returns the bot's user ID after login.
func (c *Client) UserID() string { return c.userID }

// Login authenticates via the dev login endpoint.
func (c *Client) Login() error {
	resp, err := c.httpC.Get(c.baseURL + "/auth/dev?name=" + url.QueryEscape(c.name))
	if err != nil {
		return fmt.Errorf("dev login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dev login status %d: %s", resp.StatusCode, body)
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decode tokens: %w", err)
	}
	c.token = tokens.AccessToken

	var user struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	c.userID = user.ID
	log.Debug().Str("bot", c.name).Str("userId", c.userID).Msg("Bot logged in")
	return nil
}

// CreateGame creates a new game with serverBots server-driven seats and
// returns its ID.
func (c *Client) CreateGame(name string, maxPlayers, serverBots int, strategy string) (string, error) {
	body := map[string]any{
		"name":         name,
		"max_players":  maxPlayers,
		"bots":         serverBots,
		"bot_strategy": strategy,
	}
	var game struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/api/v1/games", body, &game); err != nil {
		return "", err
	}
	return game.ID, nil
}

// JoinGame joins an existing game.
func (c *Client) JoinGame(gameID string) error {
	return c.do(http.MethodPost, "/api/v1/games/"+gameID+"/join", nil, nil)
}

// StartGame starts a game (creator only).
func (c *Client) StartGame(gameID string) error {
	return c.do(http.MethodPost, "/api/v1/games/"+gameID+"/start", nil, nil)
}

// State fetches the engine state of a started game.
func (c *Client) State(gameID string) (*conquest.GameState, error) {
	var gs conquest.GameState
	if err := c.do(http.MethodGet, "/api/v1/games/"+gameID+"/state", nil, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

// ConnectWS opens a WebSocket connection and starts listening for events.
func (c *Client) ConnectWS() error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?token=" + url.QueryEscape(c.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	go c.readWSLoop()
	return nil
}

// SubscribeGame sends a subscribe message for the given game.
func (c *Client) SubscribeGame(gameID string) error {
	return c.writeWS(map[string]string{"action": "subscribe", "game_id": gameID})
}

// SendAction submits an action over the WebSocket. The reply arrives as an
// action_result event.
func (c *Client) SendAction(gameID string, act conquest.Action) error {
	payload, err := json.Marshal(act)
	if err != nil {
		return err
	}
	return c.writeWS(map[string]any{"action": "action", "game_id": gameID, "payload": json.RawMessage(payload)})
}

func (c *Client) writeWS(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn == nil || c.closedWS {
		return fmt.Errorf("websocket not connected")
	}
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedWS
			c.mu.Unlock()
			if !closed {
				log.Debug().Err(err).Str("bot", c.name).Msg("WS read error")
			}
			return
		}
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}
		c.events <- event
	}
}

// do sends an authenticated request and decodes a JSON reply into out when set.
func (c *Client) do(method, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
