package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncBoard/configs"
	"syncBoard/internal/client"
	"syncBoard/internal/handlers"
	"syncBoard/internal/models"
	"syncBoard/internal/propagation"
	"syncBoard/internal/relay"
	"syncBoard/internal/repositories"
	"syncBoard/internal/servers/database"
	server "syncBoard/internal/servers/http"
	"syncBoard/internal/services"
)

type stack struct {
	srv  *httptest.Server
	hub  *relay.Hub
	stop func()
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v := viper.New()
	v.Set("database.driver", "sqlite")
	v.Set("database.dsn", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	v.Set("jwt.secret", "e2e-secret")
	v.Set("jwt.expiration_time", 3600)
	v.Set("server.allowed_origins", []string{"*"})
	v.Set("server.rate_limit", 1000)
	v.Set("server.rate_burst", 1000)
	config := &configs.Config{Viper: v}

	db, err := database.Open(config)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	authService := services.NewAuthenticationService(repositories.NewAuthenticationRepository(db), config)
	chatService := services.NewChatService(repositories.NewChatRepository(db))
	boardService := services.NewBoardService(repositories.NewBoardRepository(db), chatService)

	hub := relay.NewHub(relay.Options{Store: boardService})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	httpServer := server.NewHttpServer(
		config,
		handlers.NewRestHandler(authService, boardService, hub),
		handlers.NewSocketBoardHandler(hub, authService, []string{"*"}),
	)
	srv := httptest.NewServer(httpServer.Handler())

	s := &stack{srv: srv, hub: hub}
	s.stop = func() {
		cancel()
		<-hub.Stopped()
	}
	t.Cleanup(func() {
		s.stop()
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return s
}

func (s *stack) do(t *testing.T, method, path, token string, body any) (int, models.Response, json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, models.Response{Success: envelope.Success, Message: envelope.Message}, envelope.Data
}

func (s *stack) login(t *testing.T, email string) string {
	t.Helper()
	status, _, _ := s.do(t, http.MethodPost, "/register", "", map[string]string{
		"first_name": "Board",
		"last_name":  "User",
		"email":      email,
		"password":   "Whiteboard1",
	})
	require.Equal(t, http.StatusOK, status)

	status, _, data := s.do(t, http.MethodPost, "/login", "", models.LoginRequestBody{Email: email, Password: "Whiteboard1"})
	require.Equal(t, http.StatusOK, status)
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func (s *stack) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/board"
}

func TestBoardRestLifecycle(t *testing.T) {
	s := newStack(t)
	owner := s.login(t, "owner@example.com")
	guest := s.login(t, "guest@example.com")

	status, _, _ := s.do(t, http.MethodPost, "/api/boards", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, data := s.do(t, http.MethodPost, "/api/boards", owner, map[string]string{"name": "Retro"})
	require.Equal(t, http.StatusCreated, status)
	var created models.BoardResponse
	require.NoError(t, json.Unmarshal(data, &created))
	id := created.Board.ID

	status, _, _ = s.do(t, http.MethodGet, "/api/boards/missing", owner, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = s.do(t, http.MethodPut, "/api/boards/"+id, guest, map[string]any{"data": map[string]int{"generation": 0}})
	assert.Equal(t, http.StatusForbidden, status)
	status, _, _ = s.do(t, http.MethodPost, "/api/boards/"+id+"/join", guest, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = s.do(t, http.MethodPut, "/api/boards/"+id, guest, map[string]any{"data": map[string]int{"generation": 0}})
	assert.Equal(t, http.StatusOK, status)

	status, _, data = s.do(t, http.MethodGet, "/api/dashboard", guest, nil)
	require.Equal(t, http.StatusOK, status)
	var dashboard models.DashboardResponse
	require.NoError(t, json.Unmarshal(data, &dashboard))
	require.Len(t, dashboard.SharedWithMe, 1)
	assert.Equal(t, id, dashboard.SharedWithMe[0].ID)

	status, _, _ = s.do(t, http.MethodDelete, "/api/boards/"+id, guest, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _, _ = s.do(t, http.MethodDelete, "/api/boards/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = s.do(t, http.MethodDelete, "/api/boards/"+id, owner, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCollaborativeSessionPersistsOnLastLeave(t *testing.T) {
	s := newStack(t)
	owner := s.login(t, "owner@example.com")
	status, _, data := s.do(t, http.MethodPost, "/api/boards", owner, map[string]string{"name": "Live"})
	require.Equal(t, http.StatusCreated, status)
	var created models.BoardResponse
	require.NoError(t, json.Unmarshal(data, &created))
	id := created.Board.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := client.Dial(ctx, s.wsURL(), client.Options{Token: owner})
	require.NoError(t, err)
	b, err := client.Dial(ctx, s.wsURL()+"?name=guest", client.Options{})
	require.NoError(t, err)
	require.NoError(t, a.Join(ctx, id))
	require.NoError(t, b.Join(ctx, id))

	members := b.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "Board User", members[0].UserName)
	assert.Equal(t, "guest", members[1].UserName)

	_, err = a.Edit("n1", "note", json.RawMessage(`{"text":"ship it"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Replica().Store().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Say("looks good"))
	require.Eventually(t, func() bool { return len(a.Chat()) == 1 }, 2*time.Second, 10*time.Millisecond)

	status, _, data = s.do(t, http.MethodGet, "/api/dashboard", owner, nil)
	require.Equal(t, http.StatusOK, status)
	var dashboard models.DashboardResponse
	require.NoError(t, json.Unmarshal(data, &dashboard))
	require.Len(t, dashboard.ActiveNow, 1)
	assert.Equal(t, 2, dashboard.ActiveNow[0].ActiveUsers)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		rooms, err := s.hub.ActiveRooms(ctx)
		return err == nil && len(rooms) == 0
	}, 2*time.Second, 10*time.Millisecond)
	s.stop()

	status, _, data = s.do(t, http.MethodGet, "/api/boards/"+id, owner, nil)
	require.Equal(t, http.StatusOK, status)
	var board models.BoardResponse
	require.NoError(t, json.Unmarshal(data, &board))
	require.NotNil(t, board.Session)
	assert.False(t, board.Session.Active)
	update, err := propagation.DecodeUpdate(json.RawMessage(board.Board.Data))
	require.NoError(t, err)
	require.Len(t, update.Elements, 1)
	assert.Equal(t, "n1", update.Elements[0].ID)

	status, _, data = s.do(t, http.MethodGet, "/api/boards/"+id+"/chat", owner, nil)
	require.Equal(t, http.StatusOK, status)
	var history []models.ChatMessage
	require.NoError(t, json.Unmarshal(data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "looks good", history[0].Message)
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
