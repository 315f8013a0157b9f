package link

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// CallbackServer adapts the external provider's redirect into a
// Location for the handler. It serves the configured return path on a
// loopback address, feeds exactly one callback through the state
// machine, then shuts down.
type CallbackServer struct {
	addr       string
	returnPath string
	handler    *Handler
	logger     *log.Logger
}

func NewCallbackServer(addr, returnPath string, handler *Handler, logger *log.Logger) *CallbackServer {
	return &CallbackServer{
		addr:       addr,
		returnPath: returnPath,
		handler:    handler,
		logger:     logger,
	}
}

// WaitForCallback blocks until the provider redirects back and the
// resulting location has been handled, or ctx expires. The HTTP response
// only tells the user to return to the terminal; outcomes surface
// through the handler.
func (s *CallbackServer) WaitForCallback(ctx context.Context) error {
	done := make(chan error, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: s.addr, Handler: mux}

	mux.HandleFunc(s.returnPath, func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("callback request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "authorization error: "+errStr, http.StatusBadRequest)
			done <- fmt.Errorf("authorization refused: %s", errStr)
			return
		}

		err := s.handler.HandleLocation(r.Context(), LocationFromURL(r.URL))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		done <- err
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})

	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TerminalNavigator is the CLI's Navigator: a full navigation prints the
// URL for the user to open, and replacing the history entry is a no-op
// because each loopback callback location is served exactly once.
type TerminalNavigator struct {
	Logger *log.Logger
}

func (n *TerminalNavigator) Open(url string) error {
	fmt.Printf("Open this URL to connect your bank account:\n%s\n", url)
	return nil
}

func (n *TerminalNavigator) Replace(loc Location) {
	if n.Logger != nil {
		n.Logger.Debug("location replaced", "path", loc.Path)
	}
}
