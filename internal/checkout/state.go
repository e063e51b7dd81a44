package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
)

var transitions = map[enums.CheckoutState][]enums.CheckoutState{
	enums.CheckoutStateIdle: {
		enums.CheckoutStateValidatingForm,
	},
	enums.CheckoutStateValidatingForm: {
		enums.CheckoutStateIdle,
		enums.CheckoutStateCreatingIntent,
		enums.CheckoutStateAwaitingConfirmation,
	},
	enums.CheckoutStateCreatingIntent: {
		enums.CheckoutStateAwaitingConfirmation,
		enums.CheckoutStateSetupFailed,
		enums.CheckoutStateConfirming,
	},
	enums.CheckoutStateAwaitingConfirmation: {
		enums.CheckoutStateConfirming,
		enums.CheckoutStateValidatingForm,
		enums.CheckoutStateIdle,
	},
	enums.CheckoutStateConfirming: {
		enums.CheckoutStateSucceeded,
		enums.CheckoutStateFailed,
		enums.CheckoutStateIdle,
	},
	enums.CheckoutStateFailed: {
		enums.CheckoutStateAwaitingConfirmation,
	},
	enums.CheckoutStateSucceeded: {
		enums.CheckoutStatePersistingOrder,
	},
	enums.CheckoutStatePersistingOrder: {
		enums.CheckoutStateCompleted,
		enums.CheckoutStateOrderRecordingFailed,
	},
	enums.CheckoutStateSetupFailed: {
		enums.CheckoutStateValidatingForm,
	},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to enums.CheckoutState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type machine struct {
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// move applies one hop to the session. Illegal hops leave the session untouched.
func (m machine) move(ctx context.Context, sess *Session, to enums.CheckoutState) error {
	from := sess.State
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout cannot move from %s to %s", from, to))
	}
	sess.State = to
	m.metrics.IncTransition(string(from), string(to))
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"from": string(from),
		"to":   string(to),
	}), "checkout.transition")
	return nil
}

// walk applies consecutive hops and stops at the first illegal one.
func (m machine) walk(ctx context.Context, sess *Session, path ...enums.CheckoutState) error {
	for _, to := range path {
		if err := m.move(ctx, sess, to); err != nil {
			return err
		}
	}
	return nil
}
