package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Startup tracks initialization progress for the health endpoint
type Startup struct {
	mu       sync.RWMutex
	ready    bool
	current  string
	progress int
	steps    []StartupStep
}

// StartupStep is one named initialization step
type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// NewStartup creates a tracker for the named steps
func NewStartup(steps ...string) *Startup {
	s := &Startup{current: "Initializing..."}
	for _, name := range steps {
		s.steps = append(s.steps, StartupStep{Name: name})
	}
	return s
}

// SetCurrentStep updates the current initialization step
func (s *Startup) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *Startup) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := 0
	for i := range s.steps {
		if s.steps[i].Name == stepName {
			s.steps[i].Completed = true
		}
		if s.steps[i].Completed {
			completed++
		}
	}
	if len(s.steps) > 0 {
		s.progress = completed * 100 / len(s.steps)
	}
}

// MarkReady marks the server as fully initialized
func (s *Startup) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.current = "Server ready"
	s.progress = 100
}

// IsReady returns whether the server is fully initialized
func (s *Startup) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Health answers 503 with the startup progress until the server is ready,
// then 200 as long as ping succeeds
func (s *Startup) Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready, current, progress := s.ready, s.current, s.progress
		steps := append([]StartupStep(nil), s.steps...)
		s.mu.RUnlock()

		if !ready {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "starting",
				"current":  current,
				"progress": progress,
				"steps":    steps,
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ping != nil {
			if err := ping(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"status":   "unhealthy",
					"database": err.Error(),
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	}
}
