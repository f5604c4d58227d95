// Package credits implements the per-user credit ledger: reservation before
// a provider call, commit or refund after, and the append-only usage log.
// All balance mutations are single-document CAS updates on the user record,
// so balance ≥ 0 and reserved ≥ 0 hold at every persisted state.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// Rates configures credit and cost conversion per "vendor:model" selector.
// The "default" key is the fallback.
type Rates struct {
	CreditsPer1000Tokens map[string]float64
	UsdPer1000Tokens     map[string]float64
	ImageUnitCredits     map[string]int64
	VideoPerSecond       map[string]float64
}

// DefaultRates returns the built-in conversion table.
func DefaultRates() Rates {
	return Rates{
		CreditsPer1000Tokens: map[string]float64{"default": 1},
		UsdPer1000Tokens:     map[string]float64{"default": 0.002},
		ImageUnitCredits:     map[string]int64{"default": 4},
		VideoPerSecond:       map[string]float64{"default": 10},
	}
}

func lookupRate[T any](m map[string]T, selector string) T {
	if v, ok := m[selector]; ok {
		return v
	}
	return m["default"]
}

// TextCredits converts a token count to credits: ceil(tokens/1000 * rate).
func (r Rates) TextCredits(selector string, tokens int) int64 {
	rate := lookupRate(r.CreditsPer1000Tokens, selector)
	return int64(math.Ceil(float64(tokens) / 1000 * rate))
}

// ImageCredits converts an image count to credits.
func (r Rates) ImageCredits(selector string, units int) int64 {
	return lookupRate(r.ImageUnitCredits, selector) * int64(units)
}

// VideoCredits converts generated seconds to credits.
func (r Rates) VideoCredits(selector string, seconds float64) int64 {
	return int64(math.Ceil(seconds * lookupRate(r.VideoPerSecond, selector)))
}

// EstimateUsd approximates the provider cost of a token count.
func (r Rates) EstimateUsd(selector string, tokens int) float64 {
	return float64(tokens) / 1000 * lookupRate(r.UsdPer1000Tokens, selector)
}

// EstimateTokens upper-bounds the token count of a payload: ceil over
// 4-character tokens.
func EstimateTokens(payloadLen int) int {
	return (payloadLen + 3) / 4
}

// Ledger is the credit ledger over the user collection plus the usage log.
type Ledger struct {
	store docstore.Store
	rates Rates
}

// NewLedger creates a ledger.
func NewLedger(store docstore.Store, rates Rates) *Ledger {
	return &Ledger{store: store, rates: rates}
}

// Rates exposes the conversion table.
func (l *Ledger) Rates() Rates { return l.rates }

// Balance returns the user's current credit balance. A user with no account
// row yet has a zero balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (models.CreditBalance, error) {
	user, err := docstore.GetTyped[models.User](ctx, l.store, models.CollectionUsers, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.CreditBalance{}, nil
	}
	if err != nil {
		return models.CreditBalance{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Credits, nil
}

// Grant adds credits to the user's balance, creating the account row if
// needed.
func (l *Ledger) Grant(ctx context.Context, userID string, credits int64) error {
	return docstore.UpdateTyped(ctx, l.store, models.CollectionUsers, userID,
		func(user *models.User, exists bool) error {
			if !exists {
				user.ID = userID
				user.CreatedAt = time.Now().UTC()
				user.SchemaVersion = models.SchemaVersion
			}
			user.Credits.Balance += credits
			user.UpdatedAt = time.Now().UTC()
			return nil
		})
}

// Reserve places a hold for the estimated credits. Returns
// services.ErrInsufficientCredits when available headroom is too small.
func (l *Ledger) Reserve(ctx context.Context, userID string, credits int64) (string, error) {
	if credits < 0 {
		return "", fmt.Errorf("negative reservation: %d", credits)
	}
	reservationID := uuid.NewString()
	err := docstore.UpdateTyped(ctx, l.store, models.CollectionUsers, userID,
		func(user *models.User, exists bool) error {
			if !exists {
				return services.ErrInsufficientCredits
			}
			if user.Credits.Available() < credits {
				return services.ErrInsufficientCredits
			}
			if user.Credits.Reservations == nil {
				user.Credits.Reservations = make(map[string]int64)
			}
			user.Credits.Reserved += credits
			user.Credits.Reservations[reservationID] = credits
			user.UpdatedAt = time.Now().UTC()
			return nil
		})
	if err != nil {
		return "", err
	}
	return reservationID, nil
}

// Commit replaces the reservation with actual usage. Actual credits above
// the reservation are capped at the reserved amount and the overrun logged.
func (l *Ledger) Commit(ctx context.Context, userID, reservationID string, actual int64) error {
	return docstore.UpdateTyped(ctx, l.store, models.CollectionUsers, userID,
		func(user *models.User, exists bool) error {
			if !exists {
				return fmt.Errorf("commit for unknown user %s", userID)
			}
			reserved, ok := user.Credits.Reservations[reservationID]
			if !ok {
				return fmt.Errorf("unknown reservation %s", reservationID)
			}
			if actual > reserved {
				slog.Warn("credit commit overran reservation",
					"user_id", userID,
					"reservation_id", reservationID,
					"reserved", reserved,
					"actual", actual)
				actual = reserved
			}
			user.Credits.Balance -= actual
			user.Credits.Reserved -= reserved
			user.Credits.LifetimeUsed += actual
			delete(user.Credits.Reservations, reservationID)
			user.UpdatedAt = time.Now().UTC()
			return nil
		})
}

// Refund releases the reservation without touching the balance.
func (l *Ledger) Refund(ctx context.Context, userID, reservationID string) error {
	return docstore.UpdateTyped(ctx, l.store, models.CollectionUsers, userID,
		func(user *models.User, exists bool) error {
			if !exists {
				return docstore.ErrAborted
			}
			reserved, ok := user.Credits.Reservations[reservationID]
			if !ok {
				return docstore.ErrAborted
			}
			user.Credits.Reserved -= reserved
			delete(user.Credits.Reservations, reservationID)
			user.UpdatedAt = time.Now().UTC()
			return nil
		})
}

// Append writes one usage row. Best-effort observability: failures are
// logged, never propagated into the task result.
func (l *Ledger) Append(ctx context.Context, entry models.UsageEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.TaskType = models.TaskLogName(entry.TaskType)
	if _, err := l.store.Append(ctx, models.CollectionUsageLog, entry); err != nil {
		slog.Error("failed to append usage entry",
			"user_id", entry.UserID,
			"task_type", entry.TaskType,
			"error", err)
	}
}
