package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeURL(t *testing.T) {
	s := NewAuthService(AuthOptions{
		AuthorizeURL: "https://connect.stripe.com/oauth/authorize",
		ClientID:     "ca_123",
		Scopes:       "read_write",
		RedirectURI:  "http://localhost:8081/inventory",
	})

	u, err := url.Parse(s.AuthorizeURL())
	require.NoError(t, err)
	assert.Equal(t, "connect.stripe.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "ca_123", q.Get("client_id"))
	assert.Equal(t, "read_write", q.Get("scope"))
	assert.Equal(t, "http://localhost:8081/inventory", q.Get("redirect_uri"))
}

func TestAwaitRedirectOn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	redirectURI := "http://" + ln.Addr().String() + "/inventory"
	s := NewAuthService(AuthOptions{RedirectURI: redirectURI})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan string, 1)
	go func() {
		redirect, err := s.AwaitRedirectOn(ctx, ln)
		assert.NoError(t, err)
		got <- redirect
	}()

	resp, err := http.Get(redirectURI + "?scope=read_write&code=ac_42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, redirectURI+"?scope=read_write&code=ac_42", <-got)
}

func TestAwaitRedirectOn_ContextCanceled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewAuthService(AuthOptions{RedirectURI: "http://" + ln.Addr().String() + "/inventory"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.AwaitRedirectOn(ctx, ln)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeGuard_ConcurrentCallsExchangeOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	guard := NewExchangeGuard(func(ctx context.Context, code string) (string, error) {
		calls.Add(1)
		<-release
		return "acct_" + code, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, err := guard.Exchange(context.Background(), "ac_1")
			assert.NoError(t, err)
			results[i] = acct
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, acct := range results {
		assert.Equal(t, "acct_ac_1", acct)
	}

	acct, err := guard.Exchange(context.Background(), "ac_1")
	require.NoError(t, err)
	assert.Equal(t, "acct_ac_1", acct)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExchangeGuard_CancelledCallerDoesNotAbortSharedExchange(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var exchangeCtxErr atomic.Value
	guard := NewExchangeGuard(func(ctx context.Context, code string) (string, error) {
		close(started)
		<-release
		exchangeCtxErr.Store(fmt.Sprint(ctx.Err()))
		return "acct_" + code, ctx.Err()
	})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := guard.Exchange(firstCtx, "ac_1")
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		acct, err := guard.Exchange(context.Background(), "ac_1")
		assert.NoError(t, err)
		second <- acct
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "acct_ac_1", <-second)
	assert.Equal(t, "<nil>", exchangeCtxErr.Load())
}

func TestExchangeGuard_FailureCanBeRetried(t *testing.T) {
	var calls atomic.Int32
	guard := NewExchangeGuard(func(ctx context.Context, code string) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("relay unreachable")
		}
		return "acct_1", nil
	})

	_, err := guard.Exchange(context.Background(), "ac_1")
	require.Error(t, err)

	acct, err := guard.Exchange(context.Background(), "ac_1")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", acct)
	assert.Equal(t, int32(2), calls.Load())
}
