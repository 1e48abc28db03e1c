package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/sendsol/service/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotJSON(state string, balance string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "session-1",
		"network": "devnet",
		"state":   state,
		"balance": balance,
		"busy":    false,
		"draft":   map[string]string{"recipient": "r", "amount": ""},
	}
}

func TestSession_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/session", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshotJSON("connected", "2.5"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	snap, err := client.Session(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "session-1", snap.ID)
	assert.Equal(t, session.StateConnected, snap.State)
	assert.True(t, snap.Balance.Equal(decimal.RequireFromString("2.5")))
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantMsg string
	}{
		{"provider missing", http.StatusPreconditionFailed, `{"error":"please install a Solana wallet provider"}`, ErrProviderMissing, "install"},
		{"busy", http.StatusConflict, `{"error":"another wallet operation is in progress"}`, ErrBusy, "in progress"},
		{"plain text error", http.StatusBadGateway, `upstream down`, nil, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/api/v1/session/connect", r.URL.Path)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, nil)
			_, err := client.Connect(context.Background())
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSetDraft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/api/v1/session/draft", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob", body["recipient"])
		assert.Equal(t, "1.0", body["amount"])

		json.NewEncoder(w).Encode(snapshotJSON("connected", "2.5"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.SetDraft(context.Background(), "bob", "1.0")
	require.NoError(t, err)
}

func TestTransfer(t *testing.T) {
	t.Run("nil draft sends no body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/session/transfer", r.URL.Path)
			assert.Equal(t, int64(0), r.ContentLength)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			snap := snapshotJSON("connected", "1.5")
			snap["receipt"] = map[string]string{"signature": "sig", "explorer_url": "https://explorer.solana.com/tx/sig?cluster=devnet"}
			json.NewEncoder(w).Encode(snap)
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, nil)
		snap, err := client.Transfer(context.Background(), nil)
		require.NoError(t, err)
		require.NotNil(t, snap.Receipt)
		assert.Equal(t, "sig", snap.Receipt.Signature)
	})

	t.Run("draft is sent as body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "bob", body["recipient"])
			json.NewEncoder(w).Encode(snapshotJSON("connected", "1.5"))
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, nil)
		_, err := client.Transfer(context.Background(), &session.TransferDraft{Recipient: "bob", Amount: "1"})
		require.NoError(t, err)
	})
}

func TestRefreshBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/session/balance", r.URL.Path)
		json.NewEncoder(w).Encode(snapshotJSON("connected", "0.000000001"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	snap, err := client.RefreshBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.000000001", snap.Balance.String())
}

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/session", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
			w.(http.Flusher).Flush()
		}
		<-r.Context().Done()
	}))
}

func eventFrame(t *testing.T, typ session.EventType, state session.State) string {
	t.Helper()
	data, err := json.Marshal(session.Event{
		Type:    typ,
		Session: session.Snapshot{ID: "session-1", State: state, Balance: decimal.Zero},
		At:      time.Now(),
	})
	require.NoError(t, err)
	return fmt.Sprintf("event: session\ndata: %s\n\n", data)
}

func TestWatch(t *testing.T) {
	server := sseServer(t,
		"event: connected\ndata: {\"session_id\":\"session-1\"}\n\n",
		": keepalive\n\n",
		eventFrame(t, session.EventState, session.StateDisconnected),
		eventFrame(t, session.EventState, session.StateConnecting),
		"event: closed\ndata: {}\n\n",
	)
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	var got []session.State
	err := client.Watch(context.Background(), func(ev session.Event) error {
		got = append(got, ev.Session.State)
		return nil
	})

	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, []session.State{session.StateDisconnected, session.StateConnecting}, got)
}

func TestAwait(t *testing.T) {
	server := sseServer(t,
		eventFrame(t, session.EventState, session.StateDisconnected),
		eventFrame(t, session.EventState, session.StateConnected),
	)
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := client.Await(ctx, func(ev *session.Event) bool {
		return ev.Session.State == session.StateConnected
	})
	require.NoError(t, err)
	assert.Equal(t, session.StateConnected, ev.Session.State)
}

func TestAwait_Timeout(t *testing.T) {
	server := sseServer(t, eventFrame(t, session.EventState, session.StateDisconnected))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Await(ctx, func(ev *session.Event) bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL+"/", nil, nil).Health(context.Background()))
}
