package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/config"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/server"
	"github.com/npezzotti/gossip/internal/stats"
	"github.com/npezzotti/gossip/internal/testutil"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key")

var (
	alice = database.User{Id: 1, Username: "alice", Name: "Alice", AvatarId: "alice.png", AvatarUrl: "http://localhost/uploads/alice.png"}
	bob   = database.User{Id: 2, Username: "bob", Name: "Bob"}
	carol = database.User{Id: 3, Username: "carol", Name: "Carol"}
)

type testApp struct {
	app   *GoChatApp
	db    *database.MockRepository
	blobs *blobstore.MockObjectStore
	cs    *server.ChatServer
	authn *auth.TokenAuthenticator
}

func newTestApp(t *testing.T) *testApp {
	logger := testutil.TestLogger(t)
	db := &database.MockRepository{}
	blobs := &blobstore.MockObjectStore{}

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.Permissive()

	cs, err := server.NewChatServer(logger, db, blobs, su)
	if err != nil {
		t.Fatalf("failed to create chat server: %v", err)
	}

	authn := auth.NewTokenAuthenticator(testSigningKey, db)
	app := NewGoChatApp(http.NewServeMux(), logger, cs, db, blobs, authn, &config.Config{
		ServerAddr:     "localhost:8080",
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	return &testApp{app: app, db: db, blobs: blobs, cs: cs, authn: authn}
}

// session returns a cookie authenticating user.
func (ta *testApp) session(t *testing.T, user database.User) *http.Cookie {
	ta.db.On("GetAccountById", user.Id).Return(user, nil).Maybe()

	token, err := ta.authn.CreateToken(user.Id, time.Hour)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return &http.Cookie{Name: auth.TokenCookieKey, Value: token}
}

func (ta *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.app.mux.Handler.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v any) io.Reader {
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// findCookie is a helper function to find a cookie by name in the response recorder.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
