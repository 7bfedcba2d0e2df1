package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"codechem.ai/internal/observerproto"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
)

func newTestServer(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	tu := tuning.Defaults()
	tu.WorldSize = []int{8, 8, 16}
	tu.TickRateHz = 50
	tu.Damage.Enabled = false
	w, err := world.New(world.Config{ID: "obs-test", Tuning: tu}, nil, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	mux := http.NewServeMux()
	NewServer(w, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return w, srv
}

func TestBootstrap(t *testing.T) {
	w, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.WorldID != "obs-test" || boot.ProtocolVersion != observerproto.Version {
		t.Fatalf("bootstrap = %+v", boot)
	}
	if boot.WorldParams.Size != [3]int{8, 8, 16} || boot.WorldParams.VentPos != [3]int{4, 4, 0} {
		t.Fatalf("params = %+v", boot.WorldParams)
	}
	if boot.Grammar.Rules != len(w.Rules().Rules) || boot.Grammar.Name == "" {
		t.Fatalf("grammar = %+v", boot.Grammar)
	}

	post, err := http.Post(srv.URL+"/v1/observer/bootstrap", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("post status = %d", post.StatusCode)
	}
}

func TestChainsHandler(t *testing.T) {
	w, srv := newTestServer(t)
	w.StepOnce()

	resp, err := http.Get(srv.URL + "/v1/observer/chains?n=3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Tick   uint64                    `json:"tick"`
		Chains []observerproto.ChainInfo `json:"chains"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tick != 1 || len(body.Chains) > 3 {
		t.Fatalf("body = %+v", body)
	}

	bad, err := http.Get(srv.URL + "/v1/observer/chains?n=x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", bad.StatusCode)
	}
}

func TestWS_SubscribeReceivesTicks(t *testing.T) {
	w, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, TopChains: 5, Events: true}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last uint64
	for i := 0; i < 3; i++ {
		var msg observerproto.TickMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "TICK" || msg.ProtocolVersion != observerproto.Version {
			t.Fatalf("msg = %+v", msg)
		}
		if i > 0 && msg.Tick <= last {
			t.Fatalf("tick went from %d to %d", last, msg.Tick)
		}
		if len(msg.TopChains) > 5 {
			t.Fatalf("top chains = %d", len(msg.TopChains))
		}
		last = msg.Tick
	}
}

func TestWS_RejectsMissingSubscribe(t *testing.T) {
	_, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestParseSubscribe_Clamps(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		want int
	}{
		{`{"type":"SUBSCRIBE","protocol_version":"0.1"}`, true, defaultTopChains},
		{`{"type":"SUBSCRIBE","protocol_version":"0.1","top_chains":500}`, true, maxTopChains},
		{`{"type":"SUBSCRIBE","protocol_version":"0.1","top_chains":3}`, true, 3},
		{`{"type":"SUBSCRIBE","protocol_version":"9"}`, false, 0},
		{`not json`, false, 0},
	}
	for _, c := range cases {
		sub, ok := parseSubscribe([]byte(c.in))
		if ok != c.ok {
			t.Fatalf("%s: ok = %v", c.in, ok)
		}
		if ok && sub.TopChains != c.want {
			t.Fatalf("%s: top = %d want %d", c.in, sub.TopChains, c.want)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"::1":            true,
		"10.0.0.2:80":    false,
		"example.com:80": false,
		"":               false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v", in, got)
		}
	}
}
