package accountapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *accountapi.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return accountapi.New(accountapi.Endpoints{API: srv.URL, App: srv.URL}, true, srv.Client())
}

func TestDefaultEndpoints(t *testing.T) {
	prod := accountapi.DefaultEndpoints(false)
	stage := accountapi.DefaultEndpoints(true)

	assert.Equal(t, "https://app.holders.io/jsons/tonconnect-manifest.json", prod.ManifestURL())
	assert.Equal(t, "https://stage.holders.io/jsons/tonconnect-manifest.json", stage.ManifestURL())
	assert.NotEqual(t, prod.API, stage.API)
}

func TestRealtimeURL_Derived(t *testing.T) {
	c := accountapi.New(accountapi.Endpoints{API: "https://api.example.com"}, false, nil)
	assert.Equal(t, "wss://api.example.com/v2/realtime", c.RealtimeURL())

	c = accountapi.New(accountapi.Endpoints{API: "http://127.0.0.1:8080"}, false, nil)
	assert.Equal(t, "ws://127.0.0.1:8080/v2/realtime", c.RealtimeURL())

	c = accountapi.New(accountapi.Endpoints{API: "https://a", Realtime: "wss://b/rt"}, false, nil)
	assert.Equal(t, "wss://b/rt", c.RealtimeURL())
}

func TestFetchManifest(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.json":
			_, _ = w.Write([]byte(`{"url":"https://app.holders.io","name":"Holders","iconUrl":"https://app.holders.io/icon.png"}`))
		case "/empty.json":
			_, _ = w.Write([]byte(`null`))
		default:
			http.NotFound(w, r)
		}
	}))

	m, err := c.FetchManifest(context.Background(), c.Endpoints.API+"/ok.json")
	require.NoError(t, err)
	assert.Equal(t, "Holders", m.Name)
	assert.Equal(t, "https://app.holders.io", m.URL)

	_, err = c.FetchManifest(context.Background(), c.Endpoints.API+"/empty.json")
	require.ErrorIs(t, err, accountapi.ErrManifestNotFound)

	_, err = c.FetchManifest(context.Background(), c.Endpoints.API+"/missing.json")
	require.ErrorIs(t, err, accountapi.ErrManifestNotFound)
}

func TestExchangeToken(t *testing.T) {
	var got accountapi.TokenRequest

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/user/wallet/connect", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"token":"jwt-1"}`))
	}))

	token, err := c.ExchangeToken(context.Background(), accountapi.TokenRequest{
		Wallet: accountapi.WalletAuth{Address: "EQabc", Network: "-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", token)
	assert.Equal(t, accountapi.TokenKind, got.Kind)
	assert.Nil(t, got.Secondary)
}

func TestExchangeToken_Rejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid-proof"}`))
	}))

	_, err := c.ExchangeToken(context.Background(), accountapi.TokenRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-proof")
}

func TestFetchUserState(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body.Token {
		case "good":
			_, _ = w.Write([]byte(`{"ok":true,"state":{"kycStatus":"approved","suspended":true,"notificationSettings":{"enabled":true}}}`))
		case "expired":
			_, _ = w.Write([]byte(`{"ok":false,"error":"expired-token"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))

	st, err := c.FetchUserState(context.Background(), "good")
	require.NoError(t, err)
	require.NotNil(t, st.KYCStatus)
	assert.Equal(t, "approved", *st.KYCStatus)
	assert.True(t, st.Suspended)
	assert.True(t, st.NotificationSettings.Enabled)

	_, err = c.FetchUserState(context.Background(), "expired")
	require.ErrorIs(t, err, accountapi.ErrUnauthorized)

	_, err = c.FetchUserState(context.Background(), "bad")
	require.ErrorIs(t, err, accountapi.ErrUnauthorized)

	var se *accountapi.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestFetchAccounts(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account/list", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"list":[{"id":"a1","type":"crypto","cards":[{"id":"c1","status":"ACTIVE","lastFourDigits":"4242"}],"extra":1}]}`))
	}))

	list, err := c.FetchAccounts(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
	require.Len(t, list[0].Cards, 1)
	assert.Equal(t, "4242", list[0].Cards[0].LastFourDigits)
	assert.Contains(t, string(list[0].Raw), `"extra":1`)
}

func TestStatusError_NonAuth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.FetchAccounts(context.Background(), "tok")

	var se *accountapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.NotErrorIs(t, err, accountapi.ErrUnauthorized)
}

func TestHeadersApplied(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hostbridge", r.Header.Get("X-Client"))
		_, _ = w.Write([]byte(`{"ok":true,"list":[]}`))
	}))
	c.Headers = map[string]string{"X-Client": "hostbridge"}

	list, err := c.FetchAccounts(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, list)
}
