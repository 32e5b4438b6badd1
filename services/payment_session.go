package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tapkiosk/models"
)

var (
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrPaymentCanceled   = errors.New("payment was canceled")
	ErrPaymentDeclined   = errors.New("payment was declined")
)

// Settler blocks until the payment behind params settles. A nil return means
// the payment succeeded.
type Settler interface {
	Settle(ctx context.Context, params PaymentScreenParams) error
}

// PaymentSession is the payment screen's status machine:
//
//	idle -> processing   Begin
//	processing -> success | error   Confirm
//	error -> idle   Reset
//
// success is terminal.
type PaymentSession struct {
	params     PaymentScreenParams
	startDelay time.Duration
	onChange   func(models.PaymentStatus)

	mu     sync.Mutex
	status models.PaymentStatus
	err    error
}

// NewPaymentSession starts in idle. onChange may be nil.
func NewPaymentSession(params PaymentScreenParams, startDelay time.Duration, onChange func(models.PaymentStatus)) *PaymentSession {
	return &PaymentSession{
		params:     params,
		startDelay: startDelay,
		onChange:   onChange,
		status:     models.PaymentStatusIdle,
	}
}

func (s *PaymentSession) Status() models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err is the settlement failure that moved the session to error, if any.
func (s *PaymentSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *PaymentSession) Params() PaymentScreenParams { return s.params }

func (s *PaymentSession) Begin() error {
	return s.transition(models.PaymentStatusIdle, models.PaymentStatusProcessing, nil)
}

// Confirm records the settlement outcome.
func (s *PaymentSession) Confirm(settleErr error) error {
	if settleErr != nil {
		return s.transition(models.PaymentStatusProcessing, models.PaymentStatusError, settleErr)
	}
	return s.transition(models.PaymentStatusProcessing, models.PaymentStatusSuccess, nil)
}

// Reset returns a failed session to idle so the payment can be tried again.
func (s *PaymentSession) Reset() error {
	return s.transition(models.PaymentStatusError, models.PaymentStatusIdle, nil)
}

func (s *PaymentSession) transition(from, to models.PaymentStatus, settleErr error) error {
	s.mu.Lock()
	if s.status != from {
		current := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, current)
	}
	s.status = to
	s.err = settleErr
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(to)
	}
	return nil
}

// Run waits the start delay, then begins processing and waits for the
// settler. It returns the final status and the settlement error, if any.
func (s *PaymentSession) Run(ctx context.Context, settler Settler) (models.PaymentStatus, error) {
	timer := time.NewTimer(s.startDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	case <-timer.C:
	}
	return s.Simulate(ctx, settler)
}

// Simulate begins processing immediately and waits for the settler.
func (s *PaymentSession) Simulate(ctx context.Context, settler Settler) (models.PaymentStatus, error) {
	if err := s.Begin(); err != nil {
		return s.Status(), err
	}

	settleErr := settler.Settle(ctx, s.params)
	if settleErr != nil {
		log.Printf("[Payment] Intent %s failed to settle: %v", s.params.PaymentIntentID, settleErr)
	}
	if err := s.Confirm(settleErr); err != nil {
		return s.Status(), err
	}
	return s.Status(), settleErr
}

// SimulatedSettler reports success after a fixed delay.
type SimulatedSettler struct {
	Delay time.Duration
}

func (s SimulatedSettler) Settle(ctx context.Context, _ PaymentScreenParams) error {
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IntentSettler polls the relay until the payment intent reaches a final
// state.
type IntentSettler struct {
	Relay    Relay
	Interval time.Duration
}

func (s IntentSettler) Settle(ctx context.Context, params PaymentScreenParams) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	started := false
	for {
		pi, err := s.Relay.IntentStatus(ctx, params.ConnectedAccountID, params.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("failed to read intent status: %w", err)
		}

		switch pi.Status {
		case "succeeded":
			return nil
		case "canceled":
			return ErrPaymentCanceled
		case "requires_payment_method":
			// A card that was presented and declined sends the intent back here.
			if started {
				return ErrPaymentDeclined
			}
		default:
			started = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
