package network_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/logging"
	"github.com/relab/benor/network"
)

type recorder struct {
	mut  sync.Mutex
	msgs []benor.Message
}

func (r *recorder) Broadcast(msg benor.Message) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []benor.Message {
	r.mut.Lock()
	defer r.mut.Unlock()
	return append([]benor.Message(nil), r.msgs...)
}

func newTestServer(t *testing.T, opts consensus.Options, serverOpts ...network.ServerOption) (*httptest.Server, *consensus.Node, *recorder) {
	t.Helper()
	rec := &recorder{}
	node, err := consensus.New(0, opts, rec, consensus.WithLogger(logging.New("test")))
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}
	serverOpts = append([]network.ServerOption{network.WithServerLogger(logging.New("server"))}, serverOpts...)
	srv := httptest.NewServer(network.NewServer(node, serverOpts...))
	t.Cleanup(srv.Close)
	return srv, node, rec
}

func request(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, strings.TrimSpace(string(b))
}

func TestServerStatus(t *testing.T) {
	live, _, _ := newTestServer(t, consensus.Options{N: 4, F: 1, InitialValue: benor.One})
	faulty, _, _ := newTestServer(t, consensus.Options{N: 4, F: 1, Faulty: true})

	tests := []struct {
		name     string
		url      string
		wantCode int
		wantBody string
	}{
		{name: "Live__", url: live.URL + "/status", wantCode: http.StatusOK, wantBody: "live"},
		{name: "Faulty", url: faulty.URL + "/status", wantCode: http.StatusInternalServerError, wantBody: "faulty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := request(t, http.MethodGet, tt.url, "")
			if code != tt.wantCode || body != tt.wantBody {
				t.Errorf("GET /status = %d %q, want %d %q", code, body, tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestServerProtocol(t *testing.T) {
	srv, _, rec := newTestServer(t, consensus.Options{N: 4, F: 1, InitialValue: benor.Zero})

	code, body := request(t, http.MethodGet, srv.URL+"/getState", "")
	if code != http.StatusOK {
		t.Fatalf("GET /getState = %d", code)
	}
	if want := `{"killed":false,"x":0,"decided":false,"k":0}`; body != want {
		t.Errorf("GET /getState = %s, want %s", body, want)
	}

	code, body = request(t, http.MethodGet, srv.URL+"/start", "")
	if code != http.StatusOK || body != `{"message":"Algorithm started"}` {
		t.Errorf("GET /start = %d %s", code, body)
	}

	for i := 0; i < 3; i++ {
		msg := `{"k": 1, "x": 0, "messageType": "proposal phase", "sender": ` + benor.ID(i).String() + `}`
		code, body = request(t, http.MethodPost, srv.URL+"/message", msg)
		if code != http.StatusOK || body != `{"message":"Message received"}` {
			t.Errorf("POST /message = %d %s", code, body)
		}
	}
	want := []benor.Message{
		benor.NewMessage(0, 1, benor.Zero, benor.ProposalPhase),
		benor.NewMessage(0, 1, benor.Zero, benor.VotingPhase),
	}
	if diff := cmp.Diff(want, rec.messages()); diff != "" {
		t.Errorf("broadcasts mismatch (-want +got):\n%s", diff)
	}

	code, body = request(t, http.MethodGet, srv.URL+"/stop", "")
	if code != http.StatusOK || body != "killed" {
		t.Errorf("GET /stop = %d %q", code, body)
	}

	code, body = request(t, http.MethodPost, srv.URL+"/message", `{"k": 1, "x": 1, "messageType": "voting phase"}`)
	if code != http.StatusServiceUnavailable || body != "inactive" {
		t.Errorf("POST /message to a stopped node = %d %q", code, body)
	}

	code, body = request(t, http.MethodGet, srv.URL+"/getState", "")
	var state benor.NodeState
	if err := json.Unmarshal([]byte(body), &state); err != nil || code != http.StatusOK {
		t.Fatalf("GET /getState = %d %s: %v", code, body, err)
	}
	if !state.Killed {
		t.Error("state.killed = false after /stop")
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	srv, _, rec := newTestServer(t, consensus.Options{N: 4, F: 1, InitialValue: benor.Zero})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{name: "MissingRound____", method: http.MethodPost, path: "/message", body: `{"x": 0, "messageType": "proposal phase"}`, wantCode: http.StatusBadRequest},
		{name: "BadValue________", method: http.MethodPost, path: "/message", body: `{"k": 1, "x": 7, "messageType": "proposal phase"}`, wantCode: http.StatusBadRequest},
		{name: "RoundZero_______", method: http.MethodPost, path: "/message", body: `{"k": 0, "x": 1, "messageType": "voting phase"}`, wantCode: http.StatusBadRequest},
		{name: "NotJSON_________", method: http.MethodPost, path: "/message", body: `not json`, wantCode: http.StatusBadRequest},
		{name: "GetMessage______", method: http.MethodGet, path: "/message", wantCode: http.StatusMethodNotAllowed},
		{name: "PostStatus______", method: http.MethodPost, path: "/status", wantCode: http.StatusMethodNotAllowed},
		{name: "PostStop________", method: http.MethodPost, path: "/stop", wantCode: http.StatusMethodNotAllowed},
		{name: "UnknownEndpoint_", method: http.MethodGet, path: "/decide", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := request(t, tt.method, srv.URL+tt.path, tt.body); code != tt.wantCode {
				t.Errorf("%s %s = %d %q, want %d", tt.method, tt.path, code, body, tt.wantCode)
			}
		})
	}
	if got := len(rec.messages()); got != 0 {
		t.Errorf("bad requests caused %d broadcasts", got)
	}
}

func TestServerFaultyStart(t *testing.T) {
	srv, _, rec := newTestServer(t, consensus.Options{N: 4, F: 1, Faulty: true})

	code, body := request(t, http.MethodGet, srv.URL+"/start", "")
	if code != http.StatusOK || body != `{"message":"Algorithm started"}` {
		t.Errorf("GET /start = %d %s", code, body)
	}
	code, body = request(t, http.MethodGet, srv.URL+"/getState", "")
	if want := `{"killed":true,"x":null,"decided":null,"k":null}`; code != http.StatusOK || body != want {
		t.Errorf("GET /getState = %d %s, want %s", code, body, want)
	}
	if got := len(rec.messages()); got != 0 {
		t.Errorf("faulty node broadcast %d messages", got)
	}
}

func TestServerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := network.NewMetrics(registry, 0)
	srv, _, _ := newTestServer(t, consensus.Options{N: 4, F: 1, InitialValue: benor.One}, network.WithMetrics(metrics, registry))

	request(t, http.MethodPost, srv.URL+"/message", `{"k": 1, "x": 1, "messageType": "proposal phase", "sender": 1}`)
	request(t, http.MethodPost, srv.URL+"/message", `{"k": 1, "messageType": "proposal phase"}`)

	code, body := request(t, http.MethodGet, srv.URL+"/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	for _, want := range []string{
		`benor_messages_received_total{node="0",phase="proposal phase"} 1`,
		`benor_messages_rejected_total{node="0",reason="malformed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("GET /metrics does not contain %q", want)
		}
	}
}
