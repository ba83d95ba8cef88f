// Package fakeapi is an in-process JSON-RPC server implementing a small
// slice of the monitoring API over SQLite, enough to run the builtin
// catalogs end to end: host groups, hosts, items with preprocessing,
// connectors, users and services.
//
// Every call runs in one transaction that is rolled back when the call
// returns an API error, so rejected calls never change the database.
package fakeapi

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

// Credentials of the seeded super admin.
const (
	AdminUsername = "Admin"
	AdminPassword = "zabbix"
	AdminUserID   = 1
)

//go:embed schema.sql
var schema string

var dbSeq atomic.Int64

// Server is a running fake API.
type Server struct {
	// URL is the JSON-RPC endpoint.
	URL string
	// DSN opens the fake's database with the sqlite3 driver.
	DSN string

	db   *sql.DB
	http *httptest.Server

	mu       sync.Mutex
	sessions map[string]int64

	methods map[string]method
}

// method handles one API method inside tx. userID is the caller, 0 for
// unauthenticated calls.
type method struct {
	public bool
	fn     func(ctx context.Context, tx *sql.Tx, userID int64, params any) (any, *apiError)
}

// New starts a server with a fresh database. It is stopped by t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s, err := Start()
	if err != nil {
		t.Fatalf("fakeapi: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a server with a fresh database. The caller closes it.
func Start() (*Server, error) {
	dsn := fmt.Sprintf("file:fakeapi_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// The in-memory database lives as long as this connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Server{DSN: dsn, db: db, sessions: make(map[string]int64)}
	s.register()
	s.http = httptest.NewServer(auth.HTTPMiddleware(s)(http.HandlerFunc(s.serveRPC)))
	s.URL = s.http.URL + "/api_jsonrpc.php"
	return s, nil
}

// Close stops the server and drops the database.
func (s *Server) Close() {
	s.http.Close()
	_ = s.db.Close()
}

// DB returns the fake's database handle.
func (s *Server) DB() *sql.DB { return s.db }

// Validate implements auth.SessionValidator.
func (s *Server) Validate(ctx context.Context, token string) (auth.Session, error) {
	s.mu.Lock()
	userID, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return auth.Session{}, errors.New("unknown session")
	}
	var username string
	if err := s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE userid = ?`, userID).Scan(&username); err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		UserRef:  reference.Ref(reference.KindUser, username),
		Username: username,
		Token:    auth.Token(token),
	}, nil
}

func (s *Server) login(userID int64) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.sessions[token] = userID
	s.mu.Unlock()
	return token
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, rpcResponse{JSONRPC: "2.0", Error: &apiError{
			Code: -32700, Message: "Parse error.", Data: "Invalid JSON. An error occurred on the server while parsing the JSON text.",
		}, ID: json.RawMessage("null")})
		return
	}

	result, apiErr := s.dispatch(r.Context(), req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if apiErr != nil {
		resp.Error = apiErr
	} else {
		resp.Result = result
	}
	writeJSON(w, resp)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, *apiError) {
	m, ok := s.methods[req.Method]
	if !ok {
		return nil, &apiError{Code: -32601, Message: "Method not found.", Data: fmt.Sprintf("Incorrect API %q.", req.Method)}
	}

	var userID int64
	if sess, ok := auth.SessionFromContext(ctx); ok {
		ref, _ := reference.Parse(sess.UserRef)
		if err := s.db.QueryRowContext(ctx, `SELECT userid FROM users WHERE username = ?`, ref.Name).Scan(&userID); err != nil {
			userID = 0
		}
	}
	if userID == 0 && !m.public {
		return nil, invalidParams("Not authorized.")
	}

	params, err := decodeParams(req.Params)
	if err != nil {
		return nil, &apiError{Code: -32700, Message: "Parse error.", Data: err.Error()}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalError(err)
	}
	result, apiErr := m.fn(ctx, tx, userID, params)
	if apiErr != nil {
		_ = tx.Rollback()
		return nil, apiErr
	}
	if err := tx.Commit(); err != nil {
		return nil, internalError(err)
	}
	return result, nil
}

func decodeParams(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
