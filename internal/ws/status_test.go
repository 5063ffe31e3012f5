package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"streamvault/pkg/checkout"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Now() }
func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// stuckClock never lets a wait finish.
type stuckClock struct{}

func (stuckClock) Now() time.Time { return time.Now() }
func (stuckClock) After(time.Duration) <-chan time.Time { return nil }

type scripted struct {
	mu      sync.Mutex
	answers []string
	calls   int
}

func (s *scripted) FetchStatus(ctx context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.answers) == 0 {
		return "PENDING", nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const testSiteURL = "https://shop.example.com"

func startServer(t *testing.T, hub *StatusHub) string {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/checkout/:reference", UpgradeStatusWS(hub, testSiteURL))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEvents(t *testing.T, conn *websocket.Conn) []Event {
	var events []Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return events
		}
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
}

func TestStatusChannel_StreamsUntilSettled(t *testing.T) {
	fetcher := &scripted{answers: []string{"PENDING", "PENDING", "PAID"}}
	hub := NewStatusHub(context.Background(), fetcher, instantClock{}, nil)
	url := startServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/checkout/ORDER-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	events := readEvents(t, conn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "settled", last.Type)
	assert.Equal(t, "PAID", last.Status)
	assert.Equal(t, "ORDER-1", last.Reference)
	assert.Equal(t, 3, fetcher.count())

	require.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStatusChannel_TimesOut(t *testing.T) {
	fetcher := &scripted{}
	hub := NewStatusHub(context.Background(), fetcher, instantClock{}, nil)
	url := startServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/checkout/ORDER-2", nil)
	require.NoError(t, err)
	defer conn.Close()

	events := readEvents(t, conn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "FAILED", last.Status)
	assert.Equal(t, checkout.Reason3DSTimeout, last.Reason)
	assert.Equal(t, checkout.DefaultPollAttempts, fetcher.count())
}

func TestStatusChannel_DisconnectStopsPolling(t *testing.T) {
	fetcher := &scripted{}
	hub := NewStatusHub(context.Background(), fetcher, stuckClock{}, nil)
	url := startServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/checkout/ORDER-3", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fetcher.count())
}

func TestStatusHub_OnePollerPerReference(t *testing.T) {
	fetcher := &scripted{}
	hub := NewStatusHub(context.Background(), fetcher, stuckClock{}, nil)

	a := hub.Subscribe("ORDER-4")
	b := hub.Subscribe("ORDER-4")
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Active())

	a.Close()
	assert.Equal(t, 1, hub.Active())
	b.Close()
	assert.Equal(t, 0, hub.Active())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fetcher.count())
}

func TestStatusChannel_OriginChecked(t *testing.T) {
	fetcher := &scripted{answers: []string{"PAID"}}
	hub := NewStatusHub(context.Background(), fetcher, instantClock{}, nil)
	url := startServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(url+"/ws/checkout/ORDER-X", http.Header{"Origin": {"https://evil.example.net"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, fetcher.count())

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws/checkout/ORDER-Y", http.Header{"Origin": {"https://shop.example.com/"}})
	require.NoError(t, err)
	defer conn.Close()
	events := readEvents(t, conn)
	require.NotEmpty(t, events)
	assert.Equal(t, "PAID", events[len(events)-1].Status)
}
