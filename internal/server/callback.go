package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/spotsession/internal/auth"
	"github.com/desertthunder/spotsession/internal/shared"
)

// CallbackResult is what the authorization server's redirect delivered.
type CallbackResult struct {
	Callback auth.Callback
	Err      error
}

// CallbackHandler accepts the authorization server's redirect.
//
// Requests without code or state are answered with 400 and do not count. A redirect carrying an
// `error` parameter, such as a denied consent, ends the flow. Only the first decisive request is
// delivered; later ones get 410.
type CallbackHandler struct {
	path    string
	results chan CallbackResult

	mu   sync.Mutex
	done bool
}

// NewCallbackHandler creates a handler serving path.
func NewCallbackHandler(path string) *CallbackHandler {
	if path == "" {
		path = "/"
	}
	return &CallbackHandler{path: path, results: make(chan CallbackResult, 1)}
}

// Routes implements [Handler].
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP implements [http.Handler].
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		http.Error(w, "Callback already processed", http.StatusGone)
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" && q.Get("code") == "" {
		h.deliver(CallbackResult{Err: fmt.Errorf("%w: authorization denied: %s %s", shared.ErrAuthFailed, e, q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	cb, err := auth.CallbackFromQuery(q)
	if err != nil {
		http.Error(w, "Missing code or state", http.StatusBadRequest)
		return
	}

	h.deliver(CallbackResult{Callback: cb})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Result receives exactly one result.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}

// deliver must be called with mu held.
func (h *CallbackHandler) deliver(res CallbackResult) {
	h.done = true
	h.results <- res
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization received</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization received</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
