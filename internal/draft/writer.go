package draft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/cv-ingest/internal/types"
)

// Notifier is told when an owner's draft has been replaced
type Notifier interface {
	DraftRefreshed(owner uuid.UUID)
}

// Writer performs the destructive draft replace and triggers the preview refresh.
// There is no merge and no version check: the last successful write wins.
type Writer struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// NewWriter creates a Writer. notifier may be nil.
func NewWriter(store Store, notifier Notifier, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, notifier: notifier, logger: logger}
}

// ReplaceDraft clears the owner's draft and writes state in its place
func (w *Writer) ReplaceDraft(ctx context.Context, owner uuid.UUID, state *types.CVState) error {
	if state == nil {
		return fmt.Errorf("replace draft: state is nil")
	}

	start := time.Now()
	if err := w.store.ReplaceDraft(ctx, owner, state); err != nil {
		return fmt.Errorf("replace draft: %w", err)
	}

	w.logger.Info("draft replaced",
		"owner", owner,
		"experiences", len(state.Experiences),
		"education", len(state.Education),
		"skills", len(state.Skills),
		"languages", len(state.Languages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if w.notifier != nil {
		w.notifier.DraftRefreshed(owner)
	}
	return nil
}

// GetDraft reads the owner's current draft
func (w *Writer) GetDraft(ctx context.Context, owner uuid.UUID) (*types.CVState, error) {
	return w.store.GetDraft(ctx, owner)
}
