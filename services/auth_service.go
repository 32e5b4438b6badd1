package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
)

// AuthOptions configures the Connect authorization redirect.
type AuthOptions struct {
	AuthorizeURL string
	ClientID     string
	Scopes       string
	RedirectURI  string
}

type AuthService struct {
	opts AuthOptions
}

func NewAuthService(opts AuthOptions) *AuthService {
	return &AuthService{opts: opts}
}

// AuthorizeURL is the page the merchant opens to grant access.
func (s *AuthService) AuthorizeURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.opts.ClientID)
	q.Set("scope", s.opts.Scopes)
	q.Set("redirect_uri", s.opts.RedirectURI)
	return s.opts.AuthorizeURL + "?" + q.Encode()
}

// AwaitRedirect listens on the redirect URI's host and returns the first
// redirect URL that reaches its path.
func (s *AuthService) AwaitRedirect(ctx context.Context) (string, error) {
	u, err := url.Parse(s.opts.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}
	return s.AwaitRedirectOn(ctx, ln)
}

// AwaitRedirectOn is AwaitRedirect over an existing listener, which it closes.
func (s *AuthService) AwaitRedirectOn(ctx context.Context, ln net.Listener) (string, error) {
	u, err := url.Parse(s.opts.RedirectURI)
	if err != nil {
		ln.Close()
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	received := make(chan string, 1)
	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		redirect := "http://" + r.Host + r.URL.RequestURI()
		select {
		case received <- redirect:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Login received. You can return to the kiosk.")
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[OAuth] Error stopping redirect listener: %v", err)
		}
	}()

	log.Printf("[OAuth] Waiting for redirect on %s", ln.Addr())
	select {
	case redirect := <-received:
		return redirect, nil
	case err := <-serveErr:
		return "", fmt.Errorf("redirect listener failed: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ExchangeFunc trades an authorization code for a connected account id.
type ExchangeFunc func(ctx context.Context, code string) (string, error)

// ExchangeGuard runs the exchange for a given code at most once to
// completion. Concurrent callers with the same code share the in-flight call,
// and a successful result is remembered. A failed exchange is not remembered
// so the caller can retry it.
type ExchangeGuard struct {
	exchange ExchangeFunc
	group    singleflight.Group

	mu   sync.Mutex
	done map[string]string
}

func NewExchangeGuard(exchange ExchangeFunc) *ExchangeGuard {
	return &ExchangeGuard{
		exchange: exchange,
		done:     map[string]string{},
	}
}

func (g *ExchangeGuard) Exchange(ctx context.Context, code string) (string, error) {
	if acct, ok := g.completed(code); ok {
		return acct, nil
	}

	// The flight is shared, so it must outlive whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(code, func() (any, error) {
		if acct, ok := g.completed(code); ok {
			return acct, nil
		}
		acct, err := g.exchange(flightCtx, code)
		if err != nil {
			return "", err
		}
		g.mu.Lock()
		g.done[code] = acct
		g.mu.Unlock()
		return acct, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *ExchangeGuard) completed(code string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	acct, ok := g.done[code]
	return acct, ok
}
