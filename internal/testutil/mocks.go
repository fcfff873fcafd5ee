package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// MockPoloniexAPI is a mock HTTP server that simulates the Poloniex public and trading APIs.
// Responses are canned JSON bodies keyed by command.
type MockPoloniexAPI struct {
	*httptest.Server
	Responses map[string]interface{}
	Status    map[string]int
	Requests  []*http.Request
	Forms     []map[string]string
	mu        sync.RWMutex
}

// NewMockPoloniexAPI creates a new mock Poloniex API server.
func NewMockPoloniexAPI() *MockPoloniexAPI {
	mock := &MockPoloniexAPI{
		Responses: make(map[string]interface{}),
		Status:    make(map[string]int),
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		form := make(map[string]string, len(r.Form))
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}

		mock.mu.Lock()
		mock.Requests = append(mock.Requests, r)
		mock.Forms = append(mock.Forms, form)
		command := form["command"]
		resp, ok := mock.Responses[command]
		status := mock.Status[command]
		mock.mu.Unlock()

		if r.URL.Path != "/public" && r.URL.Path != "/tradingApi" {
			http.NotFound(w, r)
			return
		}
		if !ok {
			resp = map[string]string{"error": "Invalid command."}
		}
		if status == 0 {
			status = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if raw, isRaw := resp.(string); isRaw {
			_, _ = w.Write([]byte(raw))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetResponse sets the body returned for a command.
func (m *MockPoloniexAPI) SetResponse(command string, body interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[command] = body
}

// SetStatus sets the HTTP status returned for a command.
func (m *MockPoloniexAPI) SetStatus(command string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status[command] = status
}

// LastForm returns the parameters of the most recent request.
func (m *MockPoloniexAPI) LastForm() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Forms) == 0 {
		return nil
	}
	return m.Forms[len(m.Forms)-1]
}

// LastRequest returns the most recent request.
func (m *MockPoloniexAPI) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

// MockStorage is an in-memory storage implementation for testing.
type MockStorage struct {
	Decisions []*types.DecisionRecord
	Err       error
	mu        sync.Mutex
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Decisions: make([]*types.DecisionRecord, 0),
	}
}

// StoreDecision stores a decision in memory.
func (m *MockStorage) StoreDecision(_ context.Context, rec *types.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	recCopy := *rec
	m.Decisions = append(m.Decisions, &recCopy)
	return nil
}

// Close is a no-op for mock storage.
func (m *MockStorage) Close() error {
	return nil
}

// GetDecisions returns all stored decisions.
func (m *MockStorage) GetDecisions() []*types.DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*types.DecisionRecord, len(m.Decisions))
	copy(result, m.Decisions)
	return result
}
