package notify

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"deckfm/logger"
)

// HookServer is a direct HTTP webhook receiver for machines reachable from
// the content store. It accepts push deliveries on POST /hooks/queue and
// signals when the queue log file was touched.
type HookServer struct {
	repo string
	path string

	updates chan struct{}
	server  *http.Server
	once    sync.Once
}

// NewHookServer starts the receiver on addr.
func NewHookServer(addr, repo, path string) *HookServer {
	h := &HookServer{
		repo:    repo,
		path:    path,
		updates: make(chan struct{}, 1),
	}

	router := mux.NewRouter()
	router.HandleFunc("/hooks/queue", h.handlePush).Methods(http.MethodPost)

	h.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("webhook receiver listening", logger.String("addr", addr))
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("webhook receiver failed", logger.ErrorField(err))
		}
	}()
	return h
}

func (h *HookServer) handlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if pushTouchesQueue(body, h.repo, h.path) {
		logger.Debug("queue log changed (webhook)")
		signal(h.updates)
	}
	w.WriteHeader(http.StatusOK)
}

// Updates implements Notifier.
func (h *HookServer) Updates() <-chan struct{} {
	return h.updates
}

// Close implements Notifier.
func (h *HookServer) Close() error {
	var err error
	h.once.Do(func() { err = h.server.Close() })
	return err
}
