package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
)

type botAPI struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (b *botAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"bridge","username":"bridge_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			b.mu.Lock()
			b.sent = append(b.sent, map[string]string{
				"chat_id":    r.PostForm.Get("chat_id"),
				"text":       r.PostForm.Get("text"),
				"parse_mode": r.PostForm.Get("parse_mode"),
			})
			b.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": -1001, "type": "channel"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}
}

func newTestDeliverer(t *testing.T) (*TelegramDeliverer, *botAPI) {
	t.Helper()
	api := &botAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	d, err := NewTelegramDeliverer("123:abc", srv.URL+"/bot%s/%s", srv.Client(), rate.Inf)
	require.NoError(t, err)
	return d, api
}

func TestTelegramDeliverToChatID(t *testing.T) {
	d, api := newTestDeliverer(t)

	require.NoError(t, d.Deliver(context.Background(), "-1001", ReportHeader+"\n\nbody"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "-1001", api.sent[0]["chat_id"])
	assert.Equal(t, "Markdown", api.sent[0]["parse_mode"])
	assert.True(t, strings.HasPrefix(api.sent[0]["text"], ReportHeader))
}

func TestTelegramDeliverToChannelName(t *testing.T) {
	d, api := newTestDeliverer(t)

	require.NoError(t, d.Deliver(context.Background(), "@supply_ops", "hello"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "@supply_ops", api.sent[0]["chat_id"])
}

func TestTelegramRequiresToken(t *testing.T) {
	_, err := NewTelegramDeliverer(" ", "", nil, rate.Inf)
	assert.Error(t, err)
}

func TestTelegramDeliverHonoursContext(t *testing.T) {
	d, _ := newTestDeliverer(t)
	d.limiter = rate.NewLimiter(rate.Every(1<<62), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, d.Deliver(ctx, "-1001", "late"))
}

func TestFromConfigRequiresTelegram(t *testing.T) {
	_, err := FromConfig(config.Config{TelegramToken: "123:abc"}, newMemLedger())
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}
