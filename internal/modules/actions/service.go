package actions

import (
	"fmt"
	"strings"
	"time"

	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/rs/zerolog"
)

// Store is the action store contract consumed by the submission path,
// the nightly re-ranker and the HTTP handlers
type Store interface {
	Insert(item *ActionItem) error
	Get(id string) (*ActionItem, error)
	List(filter Filter) ([]ActionItem, error)
	UpdateRealized(id string, windowDays int, result AttributionResult) error
	SaveRealized(id string, results []AttributionResult) error
	MarkExecuted(id string, at time.Time, cost *float64) error
	Archive(id string) error
}

// EventEmitter publishes queue events
type EventEmitter interface {
	Emit(module string, data events.EventData)
}

// Service implements the live mutation path: validate, then admit
type Service struct {
	store    Store
	eventBus EventEmitter
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new action service
func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		log:   log.With().Str("service", "actions").Logger(),
	}
}

// SetEventBus enables event emission for lifecycle changes
func (s *Service) SetEventBus(bus EventEmitter) {
	s.eventBus = bus
}

func (s *Service) emit(data events.EventData) {
	if s.eventBus != nil {
		s.eventBus.Emit("actions", data)
	}
}

// Submit validates a candidate and inserts it into the queue. Rejected items
// return a *ValidationError listing every violation and are never stored.
// The id and creation time are assigned here when the producer left them empty.
func (s *Service) Submit(item ActionItem) (*ActionItem, error) {
	result := ValidateActionItem(item)
	if !result.Valid {
		s.log.Debug().
			Str("agent", item.Agent).
			Strs("errors", result.Errors).
			Msg("Rejected action item")
		return nil, &ValidationError{Errors: result.Errors}
	}

	if strings.TrimSpace(item.ID) == "" {
		item.ID = NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	if item.ActionKey == "" {
		item.ActionKey = item.ID
	}
	// Lifecycle starts fresh regardless of what the producer sent
	item.Status = StatusPending
	item.ExecutedAt = nil
	item.Realized = nil

	if err := s.store.Insert(&item); err != nil {
		return nil, fmt.Errorf("failed to insert action: %w", err)
	}

	s.log.Info().
		Str("action_id", item.ID).
		Str("type", item.Type).
		Str("target", item.Target).
		Str("agent", item.Agent).
		Msg("Action admitted to queue")

	s.emit(&events.ActionSubmittedData{
		ActionID: item.ID,
		Type:     item.Type,
		Target:   item.Target,
		Agent:    item.Agent,
	})

	return &item, nil
}

// MarkExecuted records execution of an approved action
func (s *Service) MarkExecuted(id string, at time.Time, cost *float64) error {
	if at.IsZero() {
		at = s.now().UTC()
	}
	if cost != nil && *cost < 0 {
		return fmt.Errorf("execution cost must not be negative")
	}
	if err := s.store.MarkExecuted(id, at, cost); err != nil {
		return err
	}
	s.log.Info().Str("action_id", id).Time("executed_at", at).Msg("Action marked executed")
	s.emit(&events.ActionExecutedData{ActionID: id, ExecutionCost: cost})
	return nil
}

// Archive moves an action out of ranking
func (s *Service) Archive(id string) error {
	if err := s.store.Archive(id); err != nil {
		return err
	}
	s.log.Info().Str("action_id", id).Msg("Action archived")
	s.emit(&events.ActionArchivedData{ActionID: id})
	return nil
}

// Get returns one action
func (s *Service) Get(id string) (*ActionItem, error) {
	return s.store.Get(id)
}

// ListRankable returns every action that takes part in ranking (not archived)
func (s *Service) ListRankable() ([]ActionItem, error) {
	return s.store.List(Filter{Statuses: []Status{StatusPending, StatusExecuted, StatusAttributed}})
}
