// Package notify delivers fire-and-forget Telegram notifications.
// Delivery failures are logged and swallowed, never propagated.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Notifier sends a plain-text notification. Implementations must not block
// the caller beyond a bounded timeout and must never return delivery errors
// into the tick loops.
type Notifier interface {
	Notify(text string)
}

// Telegram sends messages through the Telegram bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	logger   *log.Logger
}

// NewTelegram creates a Telegram notifier. Empty credentials produce a
// notifier that silently drops every message, so a missing .env never
// crashes the process.
func NewTelegram(botToken, chatID string, logger *log.Logger) *Telegram {
	if logger == nil {
		logger = log.Default()
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Notify posts text to the configured chat. Errors are logged and swallowed.
func (t *Telegram) Notify(text string) {
	if t.botToken == "" || t.chatID == "" {
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.Printf("telegram: marshal payload: %v", err)
		return
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.logger.Printf("telegram: send failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Printf("telegram: API status %s", resp.Status)
	}
}

// Nop is a Notifier that discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(string) {}

var (
	_ Notifier = (*Telegram)(nil)
	_ Notifier = Nop{}
)
