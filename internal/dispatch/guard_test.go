package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"larkticket/internal/alert"
	"larkticket/internal/logger"
	"larkticket/pkg/httputil"
)

func TestGuardAlertAfterDeadline(t *testing.T) {
	var hits atomic.Int32
	events := make(chan alert.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var ev alert.Event
		json.NewDecoder(r.Body).Decode(&ev)
		events <- ev
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := zaptest.NewLogger(t)
	a := alert.NewWebhookAlerter(srv.URL, httputil.NewClient(), l)

	ctx := logger.WithRequestID(context.Background(), "req-timeout")
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	err := Guard(ctx, "check_callback", l, a, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), hits.Load())
	got := <-events
	assert.Equal(t, "check_callback", got.Flow)
	assert.Equal(t, "req-timeout", got.RequestID)
}

func TestGuardAlertAfterCancel(t *testing.T) {
	a := &recordAlerter{}
	var alertCtxErr error
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Guard(ctx, "execute_callback", zaptest.NewLogger(t), alertFunc(func(actx context.Context, flow string, err error) {
		alertCtxErr = actx.Err()
		a.Report(actx, flow, err)
	}), func(ctx context.Context) error {
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, alertCtxErr)
	assert.Equal(t, []string{"execute_callback"}, a.flows)
}

type alertFunc func(ctx context.Context, flow string, err error)

func (f alertFunc) Report(ctx context.Context, flow string, err error) { f(ctx, flow, err) }
