package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-panel/internal/weather"
)

var (
	// ErrNotFound is returned for a variable id that was never advertised.
	ErrNotFound = errors.New("unknown variable")
)

// Status is the connection health reported to the host.
type Status string

const (
	StatusOk                Status = "ok"
	StatusConnecting        Status = "connecting"
	StatusBadConfig         Status = "bad_config"
	StatusConnectionFailure Status = "connection_failure"
	StatusUnknownError      Status = "unknown_error"
	StatusError             Status = "error"
)

// StatusReport is the last reported status.
type StatusReport struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HostState is a concurrency-safe in-memory view of everything published to
// the host. Variable sets are replaced wholesale, never merged.
type HostState struct {
	mu sync.RWMutex

	status      StatusReport
	definitions []weather.VariableSpec
	variables   weather.Variables

	iconCode    string
	iconUpdates int
}

// NewHostState creates a HostState with no advertised variables.
func NewHostState() *HostState {
	return &HostState{
		status:    StatusReport{Status: StatusConnecting, UpdatedAt: time.Now().UTC()},
		variables: weather.Variables{},
	}
}

// SetStatus records a status change.
func (s *HostState) SetStatus(status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusReport{Status: status, Message: message, UpdatedAt: time.Now().UTC()}
}

// SetDefinitions advertises the variable table.
func (s *HostState) SetDefinitions(defs []weather.VariableSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions = append([]weather.VariableSpec(nil), defs...)
}

// SetVariables replaces the published set.
func (s *HostState) SetVariables(vars weather.Variables) {
	next := vars.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables = next
}

// IconUpdated records that the feedback icon changed.
func (s *HostState) IconUpdated(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iconCode = code
	s.iconUpdates++
}

// Status returns the last reported status.
func (s *HostState) Status() StatusReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Definitions returns the advertised variable table.
func (s *HostState) Definitions() []weather.VariableSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]weather.VariableSpec(nil), s.definitions...)
}

// Variables returns a copy of the published set.
func (s *HostState) Variables() weather.Variables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variables.Clone()
}

// Variable returns one published value.
func (s *HostState) Variable(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variables[id]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// IconUpdates returns the last signalled icon code and how many signals
// have been received.
func (s *HostState) IconUpdates() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iconCode, s.iconUpdates
}
