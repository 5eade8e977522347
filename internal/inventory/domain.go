package inventory

import (
	"errors"
	"time"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// Category classifies inventory items.
type Category string

const (
	// CategoryChemical marks reagents and solutions.
	CategoryChemical Category = "chemical"
	// CategoryConsumable marks disposables such as tips and gloves.
	CategoryConsumable Category = "consumable"
)

// TrackingType enumerates the three quantity representations.
type TrackingType string

const (
	// TrackingSimpleMeasure tracks one measured quantity (e.g. 500 ml).
	TrackingSimpleMeasure TrackingType = "SIMPLE_MEASURE"
	// TrackingUnitOnly tracks a whole-unit count (e.g. 12 boxes).
	TrackingUnitOnly TrackingType = "UNIT_ONLY"
	// TrackingPackWithContent tracks units that each hold measurable content.
	TrackingPackWithContent TrackingType = "PACK_WITH_CONTENT"
)

// ItemStatus enumerates item lifecycle states.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusArchived ItemStatus = "archived"
	StatusDisposed ItemStatus = "disposed"
)

// ContainerStatus enumerates per-container lifecycle states.
type ContainerStatus string

const (
	ContainerSealed ContainerStatus = "sealed"
	ContainerOpened ContainerStatus = "opened"
	ContainerEmpty  ContainerStatus = "empty"
)

// UseMode selects how a Use operation is measured.
type UseMode string

const (
	// UseContent deducts an amount of content (ml, g, ...).
	UseContent UseMode = "CONTENT"
	// UseUnits removes whole sealed units.
	UseUnits UseMode = "UNITS"
)

// MutationAction enumerates mutation record kinds.
type MutationAction string

const (
	ActionIntake  MutationAction = "intake"
	ActionUse     MutationAction = "use"
	ActionRestock MutationAction = "restock"
	ActionAdjust  MutationAction = "adjust"
	ActionDispose MutationAction = "dispose"
	ActionRestore MutationAction = "restore"
	ActionArchive MutationAction = "archive"
)

// Source tags where a mutation originated.
type Source string

const (
	SourceManual      Source = "manual"
	SourceStudentMode Source = "student_mode"
)

// Stock is the tagged-variant quantity model. Exactly one concrete variant is
// attached to an item; fields of the other variants do not exist, so a write
// can never leak stale columns from a previous tracking type.
type Stock interface {
	Type() TrackingType
	validate(cat Category) error
}

// SimpleMeasure holds one measured quantity.
type SimpleMeasure struct {
	QuantityValue float64
	QuantityUnit  string
}

// Type implements Stock.
func (SimpleMeasure) Type() TrackingType { return TrackingSimpleMeasure }

// UnitOnly holds a whole-unit count.
type UnitOnly struct {
	TotalUnits int64
	UnitType   string
}

// Type implements Stock.
func (UnitOnly) Type() TrackingType { return TrackingUnitOnly }

// PackWithContent holds a nominal unit count with content per unit. TotalUnits
// is the declared count at intake/restock and is not decremented by usage;
// live availability comes from the container ledger.
type PackWithContent struct {
	TotalUnits     int64
	ContentPerUnit float64
	ContentUnit    string
}

// Type implements Stock.
func (PackWithContent) Type() TrackingType { return TrackingPackWithContent }

// TotalContent returns the nominal content, always recomputed.
func (p PackWithContent) TotalContent() float64 {
	return float64(p.TotalUnits) * p.ContentPerUnit
}

// Item is one inventory record.
type Item struct {
	ID             int64
	Name           string
	Category       Category
	Stock          Stock
	MinimumStock   float64
	Status         ItemStatus
	OpenedAt       *time.Time
	DisposedAt     *time.Time
	DisposedBy     *string
	DisposalReason *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Container is one physical unit (bottle, box) of a PACK_WITH_CONTENT item.
// Index is 1-based, assigned at creation and never reused.
type Container struct {
	ID               int64
	ItemID           int64
	Index            int
	Status           ContainerStatus
	InitialContent   float64
	RemainingContent float64
	ContentUnit      string
	OpenedAt         *time.Time
	CreatedAt        time.Time
}

// ContainerTally aggregates ledger counts, always recomputed from rows.
type ContainerTally struct {
	Sealed           int
	Opened           int
	Empty            int
	RemainingContent float64
}

// Total returns the container count.
func (t ContainerTally) Total() int { return t.Sealed + t.Opened + t.Empty }

// QuantitySnapshot captures an item's quantity state for mutation records.
type QuantitySnapshot struct {
	TrackingType     TrackingType `json:"tracking_type,omitempty"`
	Status           ItemStatus   `json:"status,omitempty"`
	QuantityValue    *float64     `json:"quantity_value,omitempty"`
	QuantityUnit     *string      `json:"quantity_unit,omitempty"`
	TotalUnits       *int64       `json:"total_units,omitempty"`
	UnitType         *string      `json:"unit_type,omitempty"`
	ContentPerUnit   *float64     `json:"content_per_unit,omitempty"`
	ContentUnit      *string      `json:"content_unit,omitempty"`
	SealedCount      *int         `json:"sealed_count,omitempty"`
	OpenedCount      *int         `json:"opened_count,omitempty"`
	EmptyCount       *int         `json:"empty_count,omitempty"`
	RemainingContent *float64     `json:"remaining_content,omitempty"`
}

// MutationRecord is the append-only log entry written with every mutation.
type MutationRecord struct {
	ID             int64            `json:"id"`
	ItemID         int64            `json:"item_id"`
	Action         MutationAction   `json:"action"`
	IdempotencyKey string           `json:"idempotency_key"`
	ActorName      string           `json:"actor_name"`
	ActorID        *int64           `json:"actor_id,omitempty"`
	Source         Source           `json:"source"`
	Notes          string           `json:"notes,omitempty"`
	Before         QuantitySnapshot `json:"before"`
	After          QuantitySnapshot `json:"after"`
	CreatedAt      time.Time        `json:"created_at"`
}

// MutationResult carries the outcome of a stock mutation. Replayed is true
// when the idempotency key matched a previously applied operation and the
// stored result was returned without re-applying.
type MutationResult struct {
	Record   MutationRecord
	Item     Item
	Replayed bool
}

// ItemDetail combines an item with its ledger-derived counts.
type ItemDetail struct {
	Item
	Containers []Container
	Tally      ContainerTally
	LowStock   bool
}

// --- Input DTOs ---

// IntakeInput creates a new item.
type IntakeInput struct {
	Name           string
	Category       Category
	Stock          Stock
	MinimumStock   float64
	AlreadyOpened  bool
	OpenedRemained *float64 // remaining content of container #1 when opened at intake
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// UseInput records consumption.
type UseInput struct {
	ItemID         int64
	Mode           UseMode
	Amount         float64
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// RestockInput increases the authoritative quantity.
type RestockInput struct {
	ItemID         int64
	Amount         float64
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// AdjustInput sets the authoritative quantity to an absolute value.
type AdjustInput struct {
	ItemID         int64
	NewQuantity    float64
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// DisposeInput disposes an item, zeroing its quantity.
type DisposeInput struct {
	ItemID         int64
	Reason         string
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// RestoreInput returns an archived or disposed item to active.
type RestoreInput struct {
	ItemID         int64
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// ArchiveInput archives an active item.
type ArchiveInput struct {
	ItemID         int64
	Notes          string
	Actor          shared.Actor
	Source         Source
	IdempotencyKey string
}

// ListFilter narrows item listings.
type ListFilter struct {
	Category Category
	Status   ItemStatus
	Search   string
	Limit    int
	Offset   int
}

// Summary aggregates dashboard counts.
type Summary struct {
	ActiveItems   int            `json:"active_items"`
	ArchivedItems int            `json:"archived_items"`
	DisposedItems int            `json:"disposed_items"`
	ByCategory    map[string]int `json:"by_category"`
	LowStock      []LowStockItem `json:"low_stock"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// LowStockItem is one row of the low-stock report.
type LowStockItem struct {
	ItemID       int64    `json:"item_id"`
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Available    float64  `json:"available"`
	MinimumStock float64  `json:"minimum_stock"`
	Unit         string   `json:"unit"`
}

// ErrItemNotActive rejects stock mutations on archived or disposed items.
var ErrItemNotActive = errors.New("inventory: item is not active")
