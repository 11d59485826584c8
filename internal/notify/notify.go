// Package notify sends screener run summaries to chat and webhook channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"dividend-screener/internal/models"
	"dividend-screener/pkg/utils"
)

// UserAgent identifies outgoing notification requests.
const UserAgent = "dividend-screener"

// Kind is the type of a notification.
type Kind string

const (
	KindSummary Kind = "summary"
	KindError   Kind = "error"
)

// Level filters which notifications are delivered.
type Level string

const (
	LevelAll         Level = "all"
	LevelSignalsOnly Level = "signals_only" // summaries that contain GOLD or BUY picks
	LevelErrorsOnly  Level = "errors_only"
)

// Config selects the notification channels. A channel without its
// credentials is disabled.
type Config struct {
	Level    string         `mapstructure:"level" toml:"level" validate:"oneof=all signals_only errors_only"`
	Webhook  WebhookConfig  `mapstructure:"webhook" toml:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram" toml:"telegram"`
}

// WebhookConfig posts notifications as JSON to URL.
type WebhookConfig struct {
	URL string `mapstructure:"url" toml:"url" validate:"omitempty,url"`
}

// TelegramConfig sends notifications through a Telegram bot.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" toml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" toml:"chat_id"`
	BaseURL  string `mapstructure:"base_url" toml:"base_url" validate:"omitempty,url"`
}

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// Notification is a single message.
type Notification struct {
	Kind      Kind
	Title     string
	Message   string
	Data      map[string]interface{}
	Signals   int // GOLD and BUY picks in a summary
	Timestamp time.Time
}

// Channel delivers notifications to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notifier fans notifications out to its channels.
type Notifier struct {
	mu       sync.RWMutex
	channels []Channel
	level    Level
}

// New creates a notifier with every channel cfg configures.
func New(cfg Config) *Notifier {
	n := &Notifier{level: Level(cfg.Level)}
	if n.level == "" {
		n.level = LevelAll
	}
	client := &http.Client{Timeout: 10 * time.Second}

	if cfg.Webhook.URL != "" {
		n.channels = append(n.channels, NewWebhook(cfg.Webhook.URL, client))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		n.channels = append(n.channels, NewTelegram(cfg.Telegram, client))
	}
	return n
}

// AddChannel adds a channel.
func (n *Notifier) AddChannel(ch Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, ch)
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.channels) > 0
}

// Channels returns the configured channel names.
func (n *Notifier) Channels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (n *Notifier) shouldSend(msg Notification) bool {
	switch n.level {
	case LevelErrorsOnly:
		return msg.Kind == KindError
	case LevelSignalsOnly:
		return msg.Kind == KindSummary && msg.Signals > 0
	default:
		return true
	}
}

// Send delivers msg to every channel and combines their errors.
func (n *Notifier) Send(ctx context.Context, msg Notification) error {
	if !n.shouldSend(msg) {
		return nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	n.mu.RLock()
	channels := n.channels
	n.mu.RUnlock()

	var errs error
	for _, ch := range channels {
		if err := ch.Send(ctx, msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errs
}

// SendRun delivers a run summary.
func (n *Notifier) SendRun(ctx context.Context, s RunSummary) error {
	return n.Send(ctx, s.Notification())
}

// SendError delivers a failure report.
func (n *Notifier) SendError(ctx context.Context, err error, errContext string) error {
	return n.Send(ctx, Notification{
		Kind:    KindError,
		Title:   "Screener error",
		Message: fmt.Sprintf("%s: %v", errContext, err),
		Data:    map[string]interface{}{"context": errContext, "error": err.Error()},
	})
}

// Pick is one attractive instrument in a run summary.
type Pick struct {
	Symbol string        `json:"symbol"`
	Name   string        `json:"name,omitempty"`
	Signal models.Signal `json:"signal"`
	Score  float64       `json:"score"`
	Upside *float64      `json:"upside,omitempty"`
	Action models.Action `json:"action,omitempty"`
}

// RunSummary is the notification view of a finished run.
type RunSummary struct {
	RunID     string
	Universe  int
	Processed int
	Failed    int
	Duration  time.Duration
	Picks     []Pick
	Artifacts []string
}

// NewRunSummary collects the GOLD and BUY rows by descending score, at most
// maxPicks of them (0 for all).
func NewRunSummary(runID string, universe, processed, failed int, d time.Duration, rows []models.Row, maxPicks int) RunSummary {
	s := RunSummary{
		RunID:     runID,
		Universe:  universe,
		Processed: processed,
		Failed:    failed,
		Duration:  d,
	}
	for i := range rows {
		row := &rows[i]
		if row.Failed() {
			continue
		}
		v := row.Valuation
		if v.Signal != models.SignalGold && v.Signal != models.SignalBuy {
			continue
		}
		s.Picks = append(s.Picks, Pick{
			Symbol: row.Symbol(),
			Name:   row.Snapshot.Name,
			Signal: v.Signal,
			Score:  v.Score,
			Upside: v.UpsidePct,
			Action: row.Position.Action,
		})
	}
	sort.SliceStable(s.Picks, func(i, j int) bool {
		if s.Picks[i].Score != s.Picks[j].Score {
			return s.Picks[i].Score > s.Picks[j].Score
		}
		return s.Picks[i].Symbol < s.Picks[j].Symbol
	})
	if maxPicks > 0 && len(s.Picks) > maxPicks {
		s.Picks = s.Picks[:maxPicks]
	}
	return s
}

// Notification renders the summary.
func (s RunSummary) Notification() Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d of %d tickers", s.Processed, s.Universe)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&b, " in %s.\n", s.Duration.Round(time.Second))

	if len(s.Picks) == 0 {
		b.WriteString("No GOLD or BUY signals.")
	}
	for _, p := range s.Picks {
		fmt.Fprintf(&b, "\n%s %s  score %.0f", p.Signal, p.Symbol, p.Score)
		if p.Upside != nil {
			fmt.Fprintf(&b, "  upside %s", utils.FormatPercent(*p.Upside))
		}
		if p.Action != models.ActionNone {
			fmt.Fprintf(&b, "  [%s]", p.Action)
		}
	}

	return Notification{
		Kind:    KindSummary,
		Title:   "Dividend screener run " + shortID(s.RunID),
		Message: b.String(),
		Signals: len(s.Picks),
		Data: map[string]interface{}{
			"run_id":    s.RunID,
			"universe":  s.Universe,
			"processed": s.Processed,
			"failed":    s.Failed,
			"picks":     s.Picks,
			"artifacts": s.Artifacts,
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Webhook posts notifications as JSON.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook channel.
func NewWebhook(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

// Name returns the channel name.
func (w *Webhook) Name() string {
	return "webhook"
}

// Send posts n to the webhook URL.
func (w *Webhook) Send(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"type":      n.Kind,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, payload)
}

// Telegram sends notifications through the Bot API.
type Telegram struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegram creates a Telegram channel.
func NewTelegram(cfg TelegramConfig, client *http.Client) *Telegram {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultTelegramURL
	}
	return &Telegram{
		baseURL:  strings.TrimRight(base, "/"),
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   client,
	}
}

// Name returns the channel name.
func (t *Telegram) Name() string {
	return "telegram"
}

// Send posts n as an HTML message.
func (t *Telegram) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message))
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return postJSON(ctx, t.client, fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken), payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
