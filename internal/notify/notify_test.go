package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-screener/internal/models"
)

type recorded struct {
	path string
	body map[string]interface{}
}

func recorder(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(data, &body)
		mu.Lock()
		seen = append(seen, recorded{path: r.URL.Path, body: body})
		mu.Unlock()
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), seen...)
	}
}

func row(symbol string, signal models.Signal, score float64) models.Row {
	return models.Row{
		Snapshot:  models.Snapshot{Identifier: symbol},
		Valuation: models.Valuation{Signal: signal, Score: score, UpsidePct: models.Float(0.2)},
	}
}

func TestNewRunSummary_PicksGoldAndBuyByScore(t *testing.T) {
	rows := []models.Row{
		row("HOLDME", models.SignalHold, 60),
		row("BUY1", models.SignalBuy, 72),
		row("GOLD1", models.SignalGold, 90),
		row("WATCH", models.SignalWatch, 95),
		{Snapshot: models.Snapshot{Identifier: "ERR"}, Err: errors.New("boom")},
		row("BUY2", models.SignalBuy, 72),
	}

	s := NewRunSummary("0123456789abcdef", 6, 5, 1, 3*time.Second, rows, 0)
	require.Len(t, s.Picks, 3)
	assert.Equal(t, "GOLD1", s.Picks[0].Symbol)
	assert.Equal(t, "BUY1", s.Picks[1].Symbol, "ties break by ticker")
	assert.Equal(t, "BUY2", s.Picks[2].Symbol)

	limited := NewRunSummary("id", 6, 5, 1, time.Second, rows, 1)
	assert.Len(t, limited.Picks, 1)

	n := s.Notification()
	assert.Equal(t, KindSummary, n.Kind)
	assert.Equal(t, 3, n.Signals)
	assert.Equal(t, "Dividend screener run 01234567", n.Title)
	assert.Contains(t, n.Message, "Processed 5 of 6 tickers (1 failed)")
	assert.Contains(t, n.Message, "GOLD GOLD1  score 90  upside +20.00%")
}

func TestNotification_NoPicks(t *testing.T) {
	s := NewRunSummary("id", 1, 1, 0, time.Second, []models.Row{row("KO", models.SignalHold, 60)}, 0)
	n := s.Notification()
	assert.Equal(t, 0, n.Signals)
	assert.Contains(t, n.Message, "No GOLD or BUY signals.")
}

func TestNotifier_WebhookAndTelegram(t *testing.T) {
	hook, hookSeen := recorder(t, http.StatusOK)
	tg, tgSeen := recorder(t, http.StatusOK)

	n := New(Config{
		Level:    string(LevelAll),
		Webhook:  WebhookConfig{URL: hook.URL + "/hook"},
		Telegram: TelegramConfig{BotToken: "TOKEN", ChatID: "42", BaseURL: tg.URL},
	})
	require.True(t, n.Enabled())
	assert.Equal(t, []string{"webhook", "telegram"}, n.Channels())

	s := NewRunSummary("run-1", 2, 2, 0, time.Second, []models.Row{row("KO", models.SignalBuy, 75)}, 0)
	require.NoError(t, n.SendRun(context.Background(), s))

	hooks := hookSeen()
	require.Len(t, hooks, 1)
	assert.Equal(t, "/hook", hooks[0].path)
	assert.Equal(t, "summary", hooks[0].body["type"])
	data := hooks[0].body["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["run_id"])

	msgs := tgSeen()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/botTOKEN/sendMessage", msgs[0].path)
	assert.Equal(t, "42", msgs[0].body["chat_id"])
	assert.Equal(t, "HTML", msgs[0].body["parse_mode"])
	assert.Contains(t, msgs[0].body["text"], "<b>Dividend screener run run-1</b>")
}

func TestNotifier_TelegramEscapesHTML(t *testing.T) {
	tg, tgSeen := recorder(t, http.StatusOK)
	n := New(Config{Telegram: TelegramConfig{BotToken: "T", ChatID: "1", BaseURL: tg.URL}})

	require.NoError(t, n.SendError(context.Background(), errors.New("<bad> & worse"), "fetch"))
	msgs := tgSeen()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].body["text"], "&lt;bad&gt; &amp; worse")
}

func TestNotifier_Levels(t *testing.T) {
	summaryWithPick := NewRunSummary("a", 1, 1, 0, 0, []models.Row{row("KO", models.SignalGold, 90)}, 0).Notification()
	summaryEmpty := NewRunSummary("b", 1, 1, 0, 0, nil, 0).Notification()
	failure := Notification{Kind: KindError, Title: "x"}

	tests := []struct {
		level Level
		want  []bool // summaryWithPick, summaryEmpty, failure
	}{
		{LevelAll, []bool{true, true, true}},
		{LevelSignalsOnly, []bool{true, false, false}},
		{LevelErrorsOnly, []bool{false, false, true}},
		{"", []bool{true, true, true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			n := New(Config{Level: string(tt.level)})
			got := []bool{
				n.shouldSend(summaryWithPick),
				n.shouldSend(summaryEmpty),
				n.shouldSend(failure),
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotifier_CombinesChannelErrors(t *testing.T) {
	bad1, _ := recorder(t, http.StatusInternalServerError)
	bad2, _ := recorder(t, http.StatusBadGateway)

	n := New(Config{})
	assert.False(t, n.Enabled())
	n.AddChannel(NewWebhook(bad1.URL, http.DefaultClient))
	n.AddChannel(NewWebhook(bad2.URL, http.DefaultClient))

	err := n.Send(context.Background(), Notification{Kind: KindSummary, Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "status 502")
}

func TestNotifier_NoChannelsIsNoop(t *testing.T) {
	n := New(Config{})
	assert.NoError(t, n.SendError(context.Background(), errors.New("x"), "run"))
}
