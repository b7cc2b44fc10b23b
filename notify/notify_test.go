package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hazyhaar/leadscout/lead"
)

type recordingNotifier struct {
	name   string
	err    error
	events []*Event
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, ev *Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestManager_BroadcastJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: errors.New("down")}
	m := NewManager(nil, ok, bad)

	err := m.Broadcast(context.Background(), AutorunStarted())
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("got %v", err)
	}
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Errorf("every notifier must be tried: ok=%d bad=%d", len(ok.events), len(bad.events))
	}
}

func TestManager_Nil(t *testing.T) {
	var m *Manager
	if m.HasNotifiers() {
		t.Error("nil manager has no notifiers")
	}
	if err := m.Broadcast(context.Background(), AutorunPaused()); err != nil {
		t.Errorf("nil manager: got %v", err)
	}
}

func TestLeadFound_Preview(t *testing.T) {
	l := lead.Lead{ProfileName: "Designer", Post: lead.Post{Author: "Ana", Text: strings.Repeat("á", 300), Permalink: "p"}}
	ev := LeadFound(l)
	if ev.Title != "Oportunidade detectada (Designer)" {
		t.Errorf("title: got %q", ev.Title)
	}
	if !strings.HasPrefix(ev.Body, "Ana: ") || !strings.HasSuffix(ev.Body, "...") {
		t.Errorf("body: got %q", ev.Body)
	}
	if n := len([]rune(strings.TrimSuffix(strings.TrimPrefix(ev.Body, "Ana: "), "..."))); n != previewLen {
		t.Errorf("preview runes: got %d, want %d", n, previewLen)
	}
}

func TestWebhook_SignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "k")
	if err := wh.Send(context.Background(), GroupEnabled(lead.Group{Slug: "foo"})); err != nil {
		t.Fatal(err)
	}
	if gotSig != "sha256="+Sign("k", gotBody) {
		t.Errorf("signature: got %q", gotSig)
	}
	var ev Event
	if err := json.Unmarshal(gotBody, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != KindGroupEnabled || ev.Group == nil || ev.Group.Slug != "foo" {
		t.Errorf("payload: got %+v", ev)
	}
}

func TestWebhook_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhook(srv.URL, "").Send(context.Background(), AutorunPaused()); err == nil {
		t.Fatal("expected status error")
	}
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegram_EscapesPostText(t *testing.T) {
	bot := &fakeBot{}
	tg := NewTelegramWithBot(bot, 42)

	ev := &Event{Title: "Oportunidade", Body: `Ana: <script>x</script> 5 < 6 & "logo"`, URL: "https://x.test/p?a=1&b=2"}
	if err := tg.Send(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent: got %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("message: chat=%d mode=%q", msg.ChatID, msg.ParseMode)
	}
	if strings.Contains(msg.Text, "<script>") {
		t.Errorf("markup leaked: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "5 &lt; 6 &amp;") {
		t.Errorf("entities not escaped: %q", msg.Text)
	}
	if !strings.HasPrefix(msg.Text, "<b>Oportunidade</b>\n") {
		t.Errorf("title: %q", msg.Text)
	}
}
