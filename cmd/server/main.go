// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/api"
	"github.com/harvex/leadharvest/pkg/types"
)

var logger = utils.NewComponentLogger("server")

type server struct {
	engine *api.Engine
}

func main() {
	configFile := flag.String("config", "", "path to configuration file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := api.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	s := &server{engine: engine}
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      rateLimitMiddleware(s.routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", s.engine.Metrics().Handler()).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/jobs", s.handleSubmitJob).Methods("POST")
	v1.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	v1.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	v1.HandleFunc("/jobs/{id}/results", s.handleGetResults).Methods("GET")
	v1.HandleFunc("/jobs/{id}/cancel", s.handleCancelJob).Methods("POST")
	v1.HandleFunc("/adapters", s.handleListAdapters).Methods("GET")
	v1.HandleFunc("/adapters/{name}", s.handleGetAdapter).Methods("GET")
	v1.HandleFunc("/adapters/{name}", s.handleSaveAdapter).Methods("PUT")
	v1.HandleFunc("/adapters/{name}", s.handleDeleteAdapter).Methods("DELETE")
	v1.HandleFunc("/stats", s.handleStats).Methods("GET")

	return r
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(50), 100)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// jobSubmission is the POST /api/v1/jobs request body.
type jobSubmission struct {
	TaskType    string   `json:"task_type"`
	AdapterName string   `json:"adapter_name"`
	URLs        []string `json:"urls"`
	Query       string   `json:"query"`
	MaxResults  int      `json:"max_results"`
}

func (s *server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var body jobSubmission
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	taskType, err := types.ParseTaskType(body.TaskType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.engine.SubmitJob(r.Context(), api.JobRequest{
		TaskType:    taskType,
		AdapterName: body.AdapterName,
		URLs:        body.URLs,
		Query:       body.Query,
		MaxResults:  body.MaxResults,
	})
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	jobs, err := s.engine.ListJobs(r.Context(), limit)
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	results, err := s.engine.GetResults(r.Context(), id)
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  id,
		"results": results,
		"total":   len(results),
	})
}

func (s *server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cancelled, err := s.engine.CancelJob(r.Context(), id)
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	if !cancelled {
		writeError(w, http.StatusConflict, "job is already in a terminal state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    id,
		"cancelled": true,
	})
}

func (s *server) handleListAdapters(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.engine.ListAdapters()
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adapters": summaries,
		"total":    len(summaries),
	})
}

func (s *server) handleGetAdapter(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetAdapter(mux.Vars(r)["name"])
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) handleSaveAdapter(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var a types.Adapter
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.engine.SaveAdapter(name, &a); err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":  name,
		"saved": true,
	})
}

func (s *server) handleDeleteAdapter(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.engine.DeleteAdapter(name) {
		writeError(w, http.StatusNotFound, "adapter not found or not deletable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"deleted": true,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeStructuredError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warnf("response encoding failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

// writeStructuredError maps error codes to HTTP statuses.
func writeStructuredError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch utils.CodeOf(err) {
	case utils.ErrCodeJobNotFound, utils.ErrCodeAdapterNotFound:
		status = http.StatusNotFound
	case utils.ErrCodeInvalidConfig, utils.ErrCodeInvalidAdapterSchema, utils.ErrCodeInvalidURL:
		status = http.StatusBadRequest
	case utils.ErrCodeAlreadyTerminal:
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
