// Package serve publishes the report directory read-only over HTTP for
// dashboard retrieval.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server serves one directory of report files.
type Server struct {
	dir    string
	port   int
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(dir string, port int, logger *logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dir:    dir,
		port:   port,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Router builds the HTTP surface: a health probe and the read-only file
// tree. Write methods are rejected.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.dir))).Methods("GET", "HEAD")

	return handlers.CombinedLoggingHandler(logWriter{s.logger}, r)
}

// Run starts the server and blocks until a signal or Stop. The report
// directory is created if missing so the dashboard always has a target.
func (s *Server) Run() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("ensure report dir %s: %w", s.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	s.wg.Add(1)
	go s.watchLoop(watcher)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("serve", "serving %s on port %d", s.dir, s.port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		s.logger.Infof("serve", "received signal=%s, shutting down", sig)
	case err := <-errCh:
		s.cancel()
		watcher.Close()
		s.wg.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-s.ctx.Done():
	}

	s.cancel()
	watcher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("serve", "shutdown: %v", err)
	}
	s.wg.Wait()
	s.logger.Infof("serve", "server stopped")
	return nil
}

// Stop requests a graceful shutdown.
func (s *Server) Stop() {
	s.cancel()
}

// watchLoop logs report refreshes so operators can correlate dashboard
// content with detector runs.
func (s *Server) watchLoop(watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				s.logger.Infof("serve", "report updated: %s (%s)", event.Name, event.Op)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Errorf("serve", "fsnotify error: %v", err)
		}
	}
}

// logWriter adapts the leveled logger to the access-log writer the
// gorilla logging handler expects.
type logWriter struct {
	logger *logging.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Infof("serve", "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
