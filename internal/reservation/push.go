package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const MessageHierarchyChanged = "hierarchy_changed"

// PushMessage is sent by the inventory service after every committed
// transition.
type PushMessage struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	At        time.Time `json:"at"`
}

// PushURL turns the inventory base URL into its websocket endpoint for the
// project.
func PushURL(baseURL, projectID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws"
	u.RawQuery = url.Values{"project": {projectID}}.Encode()
	return u.String(), nil
}

// WatchPush subscribes to the push channel and refetches the whole tree on
// every change for this project. It blocks until ctx is done, the view is
// closed or the connection drops. Polling keeps running alongside it.
func (v *View) WatchPush(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return &NetworkError{Op: "dial push", Err: err}
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	v.log.Info("[PUSH] subscribed")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Op: "read push", Err: err}
		}

		var m PushMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			continue
		}
		if m.Type != MessageHierarchyChanged || m.ProjectID != v.projectID {
			continue
		}

		if err := v.Refresh(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return ErrClosed
			}
			v.log.WithError(err).Warn("[PUSH] refresh failed")
		}
	}
}
