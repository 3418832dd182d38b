package adsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testToken = "tok-12345"

func testUserJSON() string {
	return `{"id":"u1","username":"maria","email":"maria@example.com","role":"member","created_at":"2026-01-02T03:04:05"}`
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, loginPath, r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload["identifier"] != "maria" || payload["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"status":"success","token":"` + testToken + `","expires_at":"2026-09-01T00:00:00","user_info":` + testUserJSON() + `}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	result, err := client.Login(context.Background(), "maria", "hunter2")
	require.NoError(t, err)
	require.Equal(t, testToken, result.Token)
	require.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), result.ExpiresAt)
	require.Equal(t, "maria", result.User.Username)
	require.Equal(t, "u1", result.User.ID)

	_, err = client.Login(context.Background(), "maria", "wrong")
	var credentialErr *CredentialError
	require.ErrorAs(t, err, &credentialErr)
	require.Equal(t, "login", credentialErr.Op)
	require.Equal(t, "Invalid credentials", credentialErr.Message)
}

func TestRegisterRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, registerPath, r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Username already taken"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.Register(context.Background(), "maria", "maria@example.com", "hunter2")

	var credentialErr *CredentialError
	require.ErrorAs(t, err, &credentialErr)
	require.Equal(t, "register", credentialErr.Op)
	require.Equal(t, "Username already taken", credentialErr.Message)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantToken  string
		wantErr    error
	}{
		{"new token", http.StatusOK, `{"status":"success","token":"tok-fresh","expires_at":"2026-09-02T00:00:00"}`, "tok-fresh", nil},
		{"expired", http.StatusUnauthorized, `{"detail":"Token expired"}`, "", ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, refreshPath, r.URL.Path)
				require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL})
			fresh, err := client.Refresh(context.Background(), testToken)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantToken, fresh.Token)
		})
	}
}

func TestRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.Refresh(context.Background(), testToken)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
	require.NotErrorIs(t, err, ErrTokenExpired)
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, statusPath, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid or expired token"}`))
			return
		}
		w.Write([]byte(`{"status":"logged_in","is_logged_in":true,"user_info":` + testUserJSON() + `}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	user, err := client.Status(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, "maria", user.Username)

	_, err = client.Status(context.Background(), "tok-stale")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestConnectDefaultsExpiry(t *testing.T) {
	var got ConnectParams
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, connectPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	err := client.Connect(context.Background(), testToken, ConnectParams{
		AccessToken: "ig-token",
		UserID:      "1789",
		Username:    "maria.ads",
	})
	require.NoError(t, err)
	require.Equal(t, "ig-token", got.AccessToken)
	require.Equal(t, DefaultConnectionExpiry, got.ExpiresIn)
}

func TestConnectionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, connectionStatusPath, r.URL.Path)
		w.Write([]byte(`{"status":"success","connected":true,"valid":false,"username":"maria.ads"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	status, err := client.ConnectionStatus(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, status.Connected)
	require.False(t, status.Valid)
	require.Equal(t, "maria.ads", status.Username)
}

func TestNetworkErrorIsNotExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from now on

	client := New(Config{BaseURL: server.URL})
	_, err := client.Status(context.Background(), testToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenExpired)

	var serverErr *ServerError
	require.False(t, errors.As(err, &serverErr))
}

func TestErrorDetailFallbacks(t *testing.T) {
	require.Equal(t, "boom", errorDetail([]byte(`{"detail":"boom"}`)))
	require.Equal(t, "plain text", errorDetail([]byte("plain text")))
	require.Equal(t, "unknown error", errorDetail(nil))
}

func TestTimeStampRoundTrip(t *testing.T) {
	ts := TimeStamp{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	data, err := json.Marshal(ts)
	require.NoError(t, err)

	var back TimeStamp
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, ts.Equal(back.Time))
}
