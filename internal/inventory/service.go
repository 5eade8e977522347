package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/platform/cache"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)
	ListContainers(ctx context.Context, itemID int64) ([]Container, error)
	ListMutations(ctx context.Context, itemID int64, limit int) ([]MutationRecord, error)
	StatusCounts(ctx context.Context) (map[ItemStatus]int, map[string]int, error)
	LowStockItems(ctx context.Context) ([]LowStockItem, error)
}

// TxRepository exposes transactional operations used by the service. Every
// mutation runs inside exactly one of these transactions: item row, touched
// container rows and the mutation record commit or roll back together.
type TxRepository interface {
	InsertItem(ctx context.Context, item Item) (int64, error)
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	InsertContainers(ctx context.Context, containers []Container) error
	ListContainersForUpdate(ctx context.Context, itemID int64) ([]Container, error)
	UpdateContainer(ctx context.Context, container Container) error
	DeleteContainers(ctx context.Context, itemID int64) error
	GetMutationByKey(ctx context.Context, action MutationAction, key string) (*MutationRecord, error)
	InsertMutation(ctx context.Context, record MutationRecord) (int64, error)
}

// AuditPort abstracts the external audit sink.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const summaryCacheKey = "inventory:summary"

// Service owns the stock mutation protocol.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	cache     *cache.JSONCache
	logger    *slog.Logger
	summarySF singleflight.Group
}

// NewService builds Service. Audit, cache and logger may be nil.
func NewService(repo RepositoryPort, audit AuditPort, summaryCache *cache.JSONCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: summaryCache, logger: logger}
}

type mutationParams struct {
	action        MutationAction
	itemID        int64
	key           string
	actor         shared.Actor
	source        Source
	notes         string
	requireActive bool
	apply         func(now time.Time, item *Item, containers []Container) ([]Container, error)
}

// runMutation executes one operation of the protocol: replay detection on the
// idempotency key, item row lock, tracking-type dispatch, and the atomic
// write of item + containers + mutation record.
func (s *Service) runMutation(ctx context.Context, p mutationParams) (MutationResult, error) {
	if err := validateMutationMeta(p.key, p.actor); err != nil {
		return MutationResult{}, err
	}
	if p.source == "" {
		p.source = SourceManual
	}

	var result MutationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := tx.GetMutationByKey(ctx, p.action, p.key)
		if err != nil {
			return err
		}
		if prior != nil {
			result = MutationResult{Record: *prior, Replayed: true}
			return nil
		}

		item, err := tx.GetItemForUpdate(ctx, p.itemID)
		if err != nil {
			return err
		}
		if p.requireActive && item.Status != StatusActive {
			return ErrItemNotActive
		}

		var containers []Container
		if item.Stock != nil && item.Stock.Type() == TrackingPackWithContent {
			containers, err = tx.ListContainersForUpdate(ctx, item.ID)
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		before := snapshotOf(item, containers)
		updated, err := p.apply(now, &item, containers)
		if err != nil {
			return err
		}

		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		for i := range updated {
			if i < len(containers) && updated[i] == containers[i] {
				continue
			}
			if err := tx.UpdateContainer(ctx, updated[i]); err != nil {
				return err
			}
		}
		if updated == nil {
			updated = containers
		}

		record := MutationRecord{
			ItemID:         item.ID,
			Action:         p.action,
			IdempotencyKey: p.key,
			ActorName:      p.actor.Name,
			ActorID:        p.actor.ID,
			Source:         p.source,
			Notes:          p.notes,
			Before:         before,
			After:          snapshotOf(item, updated),
			CreatedAt:      now,
		}
		id, err := tx.InsertMutation(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id
		result = MutationResult{Record: record, Item: item}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	if result.Replayed {
		return s.replayResult(ctx, result.Record), nil
	}
	s.afterMutation(ctx, result.Record)
	return result, nil
}

// replayResult decorates a stored record with the current item state. A
// replay changes nothing, so a plain read suffices; no row lock is taken.
func (s *Service) replayResult(ctx context.Context, record MutationRecord) MutationResult {
	result := MutationResult{Record: record, Replayed: true}
	if item, err := s.repo.GetItem(ctx, record.ItemID); err == nil {
		result.Item = item
	}
	return result
}

func validateMutationMeta(key string, actor shared.Actor) error {
	if key == "" {
		return shared.NewValidationError("idempotency_key", "Idempotency key is required")
	}
	if _, err := uuid.Parse(key); err != nil {
		return shared.NewValidationError("idempotency_key", "Idempotency key must be a UUID")
	}
	if actor.Name == "" {
		return shared.NewValidationError("actor", "Actor name is required")
	}
	return nil
}

// afterMutation records the audit copy and drops the cached summary. Both are
// best-effort; the mutation already committed.
func (s *Service) afterMutation(ctx context.Context, record MutationRecord) {
	if s.audit != nil {
		meta := map[string]any{"notes": record.Notes}
		if raw, err := json.Marshal(record.After); err == nil {
			meta["after"] = json.RawMessage(raw)
		}
		err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    shared.Actor{Name: record.ActorName, ID: record.ActorID},
			Action:   fmt.Sprintf("inventory:%s", record.Action),
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", record.ItemID),
			Source:   string(record.Source),
			Meta:     meta,
			At:       record.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("audit record", slog.String("action", string(record.Action)),
				slog.Int64("item_id", record.ItemID), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, summaryCacheKey); err != nil {
			s.logger.Warn("summary cache invalidate", slog.Any("error", err))
		}
	}
}

// Intake creates an item together with its container ledger and the intake
// mutation record, all in one transaction.
func (s *Service) Intake(ctx context.Context, input IntakeInput) (MutationResult, error) {
	if err := validateMutationMeta(input.IdempotencyKey, input.Actor); err != nil {
		return MutationResult{}, err
	}
	if input.Name == "" {
		return MutationResult{}, shared.NewValidationError("name", "Name is required")
	}
	if input.MinimumStock < 0 {
		return MutationResult{}, shared.NewValidationError("minimum_stock", "Minimum stock must not be negative")
	}
	if err := validateStock(input.Category, input.Stock); err != nil {
		return MutationResult{}, err
	}
	if input.Source == "" {
		input.Source = SourceManual
	}

	var result MutationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := tx.GetMutationByKey(ctx, ActionIntake, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			result = MutationResult{Record: *prior, Replayed: true}
			return nil
		}

		now := time.Now().UTC()
		item := Item{
			Name:         input.Name,
			Category:     input.Category,
			Stock:        input.Stock,
			MinimumStock: input.MinimumStock,
			Status:       StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if input.AlreadyOpened && input.Stock.Type() != TrackingPackWithContent {
			openedAt := now
			item.OpenedAt = &openedAt
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id

		var containers []Container
		if pack, ok := input.Stock.(PackWithContent); ok {
			containers = buildContainers(id, pack, input.AlreadyOpened, input.OpenedRemained, now)
			if err := tx.InsertContainers(ctx, containers); err != nil {
				return err
			}
		}

		record := MutationRecord{
			ItemID:         id,
			Action:         ActionIntake,
			IdempotencyKey: input.IdempotencyKey,
			ActorName:      input.Actor.Name,
			ActorID:        input.Actor.ID,
			Source:         input.Source,
			Notes:          input.Notes,
			Before:         QuantitySnapshot{},
			After:          snapshotOf(item, containers),
			CreatedAt:      now,
		}
		recID, err := tx.InsertMutation(ctx, record)
		if err != nil {
			return err
		}
		record.ID = recID
		result = MutationResult{Record: record, Item: item}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	if result.Replayed {
		return s.replayResult(ctx, result.Record), nil
	}
	s.afterMutation(ctx, result.Record)
	return result, nil
}

// Use records consumption against an item. SIMPLE_MEASURE accepts content
// amounts, UNIT_ONLY whole units, PACK_WITH_CONTENT either mode via the
// container ledger.
func (s *Service) Use(ctx context.Context, input UseInput) (MutationResult, error) {
	if input.Amount <= 0 {
		return MutationResult{}, shared.NewValidationError("amount", "Amount must be greater than 0")
	}
	return s.runMutation(ctx, mutationParams{
		action:        ActionUse,
		itemID:        input.ItemID,
		key:           input.IdempotencyKey,
		actor:         input.Actor,
		source:        input.Source,
		notes:         input.Notes,
		requireActive: true,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			switch stock := item.Stock.(type) {
			case SimpleMeasure:
				if input.Mode != UseContent {
					return nil, shared.NewValidationError("mode", "Only content amounts are valid for this item")
				}
				if input.Amount > stock.QuantityValue+contentEpsilon {
					return nil, &shared.InsufficientStockError{Requested: input.Amount, Available: stock.QuantityValue, Unit: stock.QuantityUnit}
				}
				stock.QuantityValue -= input.Amount
				if stock.QuantityValue < 0 {
					stock.QuantityValue = 0
				}
				item.Stock = stock
				stampOpened(item, now)
				return nil, nil
			case UnitOnly:
				if input.Mode != UseUnits {
					return nil, shared.NewValidationError("mode", "Only whole units are valid for this item")
				}
				n, err := wholeUnits(input.Amount, "amount")
				if err != nil {
					return nil, err
				}
				if n > stock.TotalUnits {
					return nil, &shared.InsufficientStockError{Requested: float64(n), Available: float64(stock.TotalUnits), Unit: stock.UnitType}
				}
				stock.TotalUnits -= n
				item.Stock = stock
				stampOpened(item, now)
				return nil, nil
			case PackWithContent:
				switch input.Mode {
				case UseContent:
					return drainContent(containers, input.Amount, now)
				case UseUnits:
					n, err := wholeUnits(input.Amount, "amount")
					if err != nil {
						return nil, err
					}
					return removeSealedUnits(containers, n, now)
				default:
					return nil, shared.NewValidationError("mode", "Mode must be CONTENT or UNITS")
				}
			default:
				return nil, shared.NewValidationError("tracking_type", "Unknown tracking type")
			}
		},
	})
}

// Restock increases the authoritative quantity. For packs this raises the
// nominal unit count only; no container rows are created.
func (s *Service) Restock(ctx context.Context, input RestockInput) (MutationResult, error) {
	if input.Amount <= 0 {
		return MutationResult{}, shared.NewValidationError("amount", "Amount must be greater than 0")
	}
	return s.runMutation(ctx, mutationParams{
		action:        ActionRestock,
		itemID:        input.ItemID,
		key:           input.IdempotencyKey,
		actor:         input.Actor,
		source:        input.Source,
		notes:         input.Notes,
		requireActive: true,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			switch stock := item.Stock.(type) {
			case SimpleMeasure:
				stock.QuantityValue += input.Amount
				item.Stock = stock
			case UnitOnly:
				n, err := wholeUnits(input.Amount, "amount")
				if err != nil {
					return nil, err
				}
				stock.TotalUnits += n
				item.Stock = stock
			case PackWithContent:
				n, err := wholeUnits(input.Amount, "amount")
				if err != nil {
					return nil, err
				}
				stock.TotalUnits += n
				item.Stock = stock
			}
			return nil, nil
		},
	})
}

// Adjust sets the authoritative quantity to an absolute value. Container
// ledger rows are left untouched; only the aggregate field changes.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (MutationResult, error) {
	if input.NewQuantity < 0 {
		return MutationResult{}, shared.NewValidationError("new_quantity", "Quantity must not be negative")
	}
	return s.runMutation(ctx, mutationParams{
		action:        ActionAdjust,
		itemID:        input.ItemID,
		key:           input.IdempotencyKey,
		actor:         input.Actor,
		source:        input.Source,
		notes:         input.Notes,
		requireActive: true,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			switch stock := item.Stock.(type) {
			case SimpleMeasure:
				stock.QuantityValue = input.NewQuantity
				item.Stock = stock
			case UnitOnly:
				n, err := wholeUnits(input.NewQuantity, "new_quantity")
				if err != nil {
					return nil, err
				}
				stock.TotalUnits = n
				item.Stock = stock
			case PackWithContent:
				n, err := wholeUnits(input.NewQuantity, "new_quantity")
				if err != nil {
					return nil, err
				}
				stock.TotalUnits = n
				item.Stock = stock
			}
			return nil, nil
		},
	})
}

// Dispose marks an item disposed and zeroes its authoritative quantity.
// Disposal is destructive to quantity; Restore will not bring it back.
func (s *Service) Dispose(ctx context.Context, input DisposeInput) (MutationResult, error) {
	if input.Reason == "" {
		return MutationResult{}, shared.NewValidationError("reason", "Disposal reason is required")
	}
	return s.runMutation(ctx, mutationParams{
		action:        ActionDispose,
		itemID:        input.ItemID,
		key:           input.IdempotencyKey,
		actor:         input.Actor,
		source:        input.Source,
		notes:         input.Notes,
		requireActive: true,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			switch stock := item.Stock.(type) {
			case SimpleMeasure:
				stock.QuantityValue = 0
				item.Stock = stock
			case UnitOnly:
				stock.TotalUnits = 0
				item.Stock = stock
			case PackWithContent:
				stock.TotalUnits = 0
				item.Stock = stock
			}
			item.Status = StatusDisposed
			disposedAt := now
			item.DisposedAt = &disposedAt
			actor := input.Actor.Name
			item.DisposedBy = &actor
			reason := input.Reason
			item.DisposalReason = &reason
			return nil, nil
		},
	})
}

// Restore returns an archived or disposed item to active. Disposal metadata
// is cleared; the zeroed quantity stays zero until restocked.
func (s *Service) Restore(ctx context.Context, input RestoreInput) (MutationResult, error) {
	return s.runMutation(ctx, mutationParams{
		action: ActionRestore,
		itemID: input.ItemID,
		key:    input.IdempotencyKey,
		actor:  input.Actor,
		source: input.Source,
		notes:  input.Notes,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			if item.Status == StatusActive {
				return nil, shared.NewValidationError("status", "Item is already active")
			}
			item.Status = StatusActive
			item.DisposedAt = nil
			item.DisposedBy = nil
			item.DisposalReason = nil
			return nil, nil
		},
	})
}

// Archive hides an active item from day-to-day views.
func (s *Service) Archive(ctx context.Context, input ArchiveInput) (MutationResult, error) {
	return s.runMutation(ctx, mutationParams{
		action:        ActionArchive,
		itemID:        input.ItemID,
		key:           input.IdempotencyKey,
		actor:         input.Actor,
		source:        input.Source,
		notes:         input.Notes,
		requireActive: true,
		apply: func(now time.Time, item *Item, containers []Container) ([]Container, error) {
			item.Status = StatusArchived
			return nil, nil
		},
	})
}

// HardDelete permanently removes a non-active item and its containers.
// Mutation records are kept.
func (s *Service) HardDelete(ctx context.Context, itemID int64, actor shared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status == StatusActive {
			return shared.NewValidationError("status", "Active items cannot be deleted")
		}
		if err := tx.DeleteContainers(ctx, itemID); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "inventory:delete",
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", itemID),
			Source:   string(SourceManual),
		})
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, summaryCacheKey)
	}
	return nil
}

// GetItemDetail loads an item with its ledger-derived counts.
func (s *Service) GetItemDetail(ctx context.Context, itemID int64) (ItemDetail, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return ItemDetail{}, err
	}
	detail := ItemDetail{Item: item}
	if item.Stock != nil && item.Stock.Type() == TrackingPackWithContent {
		containers, err := s.repo.ListContainers(ctx, itemID)
		if err != nil {
			return ItemDetail{}, err
		}
		detail.Containers = containers
		detail.Tally = tallyContainers(containers)
	}
	detail.LowStock = belowMinimum(item, detail.Tally)
	return detail, nil
}

// ListItems returns items with low-stock flags.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]ItemDetail, error) {
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	details := make([]ItemDetail, 0, len(items))
	for _, item := range items {
		detail := ItemDetail{Item: item}
		if item.Stock != nil && item.Stock.Type() == TrackingPackWithContent {
			containers, err := s.repo.ListContainers(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			detail.Tally = tallyContainers(containers)
		}
		detail.LowStock = belowMinimum(item, detail.Tally)
		details = append(details, detail)
	}
	return details, nil
}

// History lists mutation records for an item, most recent first.
func (s *Service) History(ctx context.Context, itemID int64, limit int) ([]MutationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListMutations(ctx, itemID, limit)
}

// Summary builds the dashboard aggregate, cached in Redis with singleflight
// load dedup.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.cache == nil {
		return s.buildSummary(ctx)
	}
	var summary Summary
	err := s.cache.FetchJSON(ctx, summaryCacheKey, &summary, func(ctx context.Context) (any, error) {
		v, err, _ := s.summarySF.Do(summaryCacheKey, func() (any, error) {
			return s.buildSummary(ctx)
		})
		return v, err
	})
	return summary, err
}

func (s *Service) buildSummary(ctx context.Context) (Summary, error) {
	statusCounts, categoryCounts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	lowStock, err := s.repo.LowStockItems(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ActiveItems:   statusCounts[StatusActive],
		ArchivedItems: statusCounts[StatusArchived],
		DisposedItems: statusCounts[StatusDisposed],
		ByCategory:    categoryCounts,
		LowStock:      lowStock,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

func stampOpened(item *Item, now time.Time) {
	if item.OpenedAt == nil {
		openedAt := now
		item.OpenedAt = &openedAt
	}
}
