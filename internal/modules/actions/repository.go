package actions

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jgorzitza/hotdash/internal/database"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when no action exists for the requested id
	ErrNotFound = errors.New("action not found")
	// ErrDuplicateID is returned when inserting an action whose id already exists
	ErrDuplicateID = errors.New("action id already exists")
	// ErrInvalidTransition is returned when a lifecycle change is not allowed from the current status
	ErrInvalidTransition = errors.New("invalid status transition")
)

// realizedChunkSize bounds the number of ids bound into one IN clause
const realizedChunkSize = 500

const actionColumns = `id, action_key, type, target, draft_description, evidence,
	impact_metric, impact_delta, impact_unit, confidence, ease, risk_tier,
	can_execute, rollback_plan, freshness_label, agent, created_at, status,
	executed_at, execution_cost`

// Filter narrows List results. Zero value lists every action.
type Filter struct {
	Statuses       []Status
	ExecutedBefore *time.Time // only actions executed at or before this instant
}

// Repository is the sqlite-backed action store
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new action repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "actions").Logger(),
	}
}

// Insert stores a new action. Rejects duplicate ids with ErrDuplicateID.
// Realized results present on the item are stored alongside it.
func (r *Repository) Insert(item *ActionItem) error {
	if item.ID == "" {
		return fmt.Errorf("action id is required")
	}

	evidence, err := json.Marshal(item.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	status := item.Status
	if status == "" {
		status = StatusPending
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow("SELECT COUNT(*) FROM actions WHERE id = ?", item.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check action id: %w", err)
		}
		if exists > 0 {
			return ErrDuplicateID
		}

		_, err = tx.Exec(`INSERT INTO actions (`+actionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.Key(),
			item.Type,
			item.Target,
			item.DraftDescription,
			string(evidence),
			item.ExpectedImpact.Metric,
			item.ExpectedImpact.Delta,
			item.ExpectedImpact.Unit,
			item.Confidence,
			string(item.Ease),
			string(item.RiskTier),
			boolToInt(item.CanExecute),
			item.RollbackPlan,
			item.FreshnessLabel,
			item.Agent,
			item.CreatedAt.UnixNano(),
			string(status),
			nullableTime(item.ExecutedAt),
			nullableFloat(item.ExecutionCost),
		)
		if err != nil {
			return fmt.Errorf("failed to insert action %s: %w", item.ID, err)
		}

		for _, result := range item.Realized {
			if err := upsertRealized(tx, item.ID, result); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns a single action with its realized results
func (r *Repository) Get(id string) (*ActionItem, error) {
	row := r.db.QueryRow("SELECT "+actionColumns+" FROM actions WHERE id = ?", id)
	item, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", id, err)
	}

	if err := r.attachRealized([]*ActionItem{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns actions matching the filter, ordered by creation time
func (r *Repository) List(filter Filter) ([]ActionItem, error) {
	query := "SELECT " + actionColumns + " FROM actions"
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, len(filter.Statuses)+1)

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.ExecutedBefore != nil {
		conditions = append(conditions, "executed_at IS NOT NULL AND executed_at <= ?")
		args = append(args, filter.ExecutedBefore.UnixNano())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	items := make([]*ActionItem, 0)
	for rows.Next() {
		item, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}

	if err := r.attachRealized(items); err != nil {
		return nil, err
	}

	result := make([]ActionItem, len(items))
	for i, item := range items {
		result[i] = *item
	}
	return result, nil
}

// CountByStatus returns the number of actions in each lifecycle status
func (r *Repository) CountByStatus() (map[Status]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM actions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan action count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// UpdateRealized replaces the realized result of one window for an action
func (r *Repository) UpdateRealized(id string, windowDays int, result AttributionResult) error {
	result.WindowDays = windowDays
	return r.SaveRealized(id, []AttributionResult{result})
}

// SaveRealized writes every given window result for one action in a single
// transaction and moves the action from executed to attributed. Windows not
// present in results keep their previous value.
func (r *Repository) SaveRealized(id string, results []AttributionResult) error {
	if len(results) == 0 {
		return nil
	}
	for _, result := range results {
		if !ValidWindow(result.WindowDays) {
			return fmt.Errorf("invalid attribution window: %d days", result.WindowDays)
		}
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow("SELECT status FROM actions WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read action status: %w", err)
		}

		for _, result := range results {
			if err := upsertRealized(tx, id, result); err != nil {
				return err
			}
		}

		if Status(status) == StatusExecuted {
			if _, err := tx.Exec("UPDATE actions SET status = ? WHERE id = ?", string(StatusAttributed), id); err != nil {
				return fmt.Errorf("failed to mark action attributed: %w", err)
			}
		}
		return nil
	})
}

// MarkExecuted records that a pending action was approved and run
func (r *Repository) MarkExecuted(id string, at time.Time, cost *float64) error {
	return r.transition(id, []Status{StatusPending}, StatusExecuted,
		"executed_at = ?, execution_cost = ?", at.UnixNano(), nullableFloat(cost))
}

// Archive moves an action to the terminal archived status
func (r *Repository) Archive(id string) error {
	return r.transition(id, []Status{StatusPending, StatusExecuted, StatusAttributed}, StatusArchived, "")
}

func (r *Repository) transition(id string, from []Status, to Status, extraSet string, extraArgs ...interface{}) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow("SELECT status FROM actions WHERE id = ?", id).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read action status: %w", err)
		}

		allowed := false
		for _, s := range from {
			if Status(current) == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
		}

		set := "status = ?"
		args := []interface{}{string(to)}
		if extraSet != "" {
			set += ", " + extraSet
			args = append(args, extraArgs...)
		}
		args = append(args, id)

		if _, err := tx.Exec("UPDATE actions SET "+set+" WHERE id = ?", args...); err != nil {
			return fmt.Errorf("failed to update action %s: %w", id, err)
		}

		r.log.Debug().Str("action_id", id).Str("from", current).Str("to", string(to)).Msg("Action status changed")
		return nil
	})
}

func (r *Repository) attachRealized(items []*ActionItem) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[string]*ActionItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for start := 0; start < len(items); start += realizedChunkSize {
		end := start + realizedChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, item := range chunk {
			placeholders[i] = "?"
			args[i] = item.ID
		}

		rows, err := r.db.Query(`SELECT action_id, window_days, sessions, pageviews, add_to_carts,
				purchases, revenue, conversion_rate, average_order_value, realized_roi, fetched_at
			FROM realized_attribution
			WHERE action_id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
		if err != nil {
			return fmt.Errorf("failed to load realized attribution: %w", err)
		}

		for rows.Next() {
			var (
				actionID  string
				result    AttributionResult
				roi       sql.NullFloat64
				fetchedAt int64
			)
			if err := rows.Scan(&actionID, &result.WindowDays, &result.Sessions, &result.Pageviews,
				&result.AddToCarts, &result.Purchases, &result.Revenue, &result.ConversionRate,
				&result.AverageOrderValue, &roi, &fetchedAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan realized attribution: %w", err)
			}
			if roi.Valid {
				v := roi.Float64
				result.RealizedROI = &v
			}
			result.FetchedAt = time.Unix(0, fetchedAt).UTC()

			item := byID[actionID]
			if item == nil {
				continue
			}
			result.ActionKey = item.Key()
			if item.Realized == nil {
				item.Realized = make(map[int]AttributionResult, len(Windows))
			}
			item.Realized[result.WindowDays] = result
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate realized attribution: %w", err)
		}
	}

	return nil
}

func upsertRealized(tx *sql.Tx, actionID string, result AttributionResult) error {
	fetchedAt := result.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err := tx.Exec(`INSERT OR REPLACE INTO realized_attribution
			(action_id, window_days, sessions, pageviews, add_to_carts, purchases, revenue,
			 conversion_rate, average_order_value, realized_roi, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actionID,
		result.WindowDays,
		result.Sessions,
		result.Pageviews,
		result.AddToCarts,
		result.Purchases,
		result.Revenue,
		result.ConversionRate,
		result.AverageOrderValue,
		nullableFloat(result.RealizedROI),
		fetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %d-day attribution for %s: %w", result.WindowDays, actionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(row rowScanner) (*ActionItem, error) {
	var (
		item       ActionItem
		evidence   string
		ease       string
		riskTier   string
		status     string
		canExecute int
		createdAt  int64
		executedAt sql.NullInt64
		cost       sql.NullFloat64
	)

	err := row.Scan(
		&item.ID,
		&item.ActionKey,
		&item.Type,
		&item.Target,
		&item.DraftDescription,
		&evidence,
		&item.ExpectedImpact.Metric,
		&item.ExpectedImpact.Delta,
		&item.ExpectedImpact.Unit,
		&item.Confidence,
		&ease,
		&riskTier,
		&canExecute,
		&item.RollbackPlan,
		&item.FreshnessLabel,
		&item.Agent,
		&createdAt,
		&status,
		&executedAt,
		&cost,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(evidence), &item.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence for %s: %w", item.ID, err)
	}

	item.Ease = Ease(ease)
	item.RiskTier = RiskTier(riskTier)
	item.Status = Status(status)
	item.CanExecute = canExecute != 0
	item.CreatedAt = time.Unix(0, createdAt).UTC()
	if executedAt.Valid {
		t := time.Unix(0, executedAt.Int64).UTC()
		item.ExecutedAt = &t
	}
	if cost.Valid {
		c := cost.Float64
		item.ExecutionCost = &c
	}

	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
