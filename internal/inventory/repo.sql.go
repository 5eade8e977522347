package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

const itemColumns = `id, name, category, tracking_type, quantity_value, quantity_unit, total_units, unit_type,
content_per_unit, content_unit, minimum_stock, status, opened_at, disposed_at, disposed_by, disposal_reason,
created_at, updated_at`

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem maps one items row onto the tagged-variant model. Only the columns
// of the stored tracking type are read into the variant; the others are NULL
// by the write discipline below.
func scanItem(row rowScanner) (Item, error) {
	var (
		item           Item
		trackingType   TrackingType
		quantityValue  *float64
		quantityUnit   *string
		totalUnits     *int64
		unitType       *string
		contentPerUnit *float64
		contentUnit    *string
	)
	err := row.Scan(&item.ID, &item.Name, &item.Category, &trackingType, &quantityValue, &quantityUnit,
		&totalUnits, &unitType, &contentPerUnit, &contentUnit, &item.MinimumStock, &item.Status,
		&item.OpenedAt, &item.DisposedAt, &item.DisposedBy, &item.DisposalReason, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	switch trackingType {
	case TrackingSimpleMeasure:
		stock := SimpleMeasure{}
		if quantityValue != nil {
			stock.QuantityValue = *quantityValue
		}
		if quantityUnit != nil {
			stock.QuantityUnit = *quantityUnit
		}
		item.Stock = stock
	case TrackingUnitOnly:
		stock := UnitOnly{}
		if totalUnits != nil {
			stock.TotalUnits = *totalUnits
		}
		if unitType != nil {
			stock.UnitType = *unitType
		}
		item.Stock = stock
	case TrackingPackWithContent:
		stock := PackWithContent{}
		if totalUnits != nil {
			stock.TotalUnits = *totalUnits
		}
		if contentPerUnit != nil {
			stock.ContentPerUnit = *contentPerUnit
		}
		if contentUnit != nil {
			stock.ContentUnit = *contentUnit
		}
		item.Stock = stock
	default:
		return Item{}, fmt.Errorf("inventory: unknown tracking type %q", trackingType)
	}
	return item, nil
}

// stockColumns explodes a variant into its column values. Columns belonging
// to other tracking types are written as NULL on every write, along with the
// legacy quantity/unit mirrors and the recomputed total_content.
func stockColumns(stock Stock) (quantityValue, quantityUnit, totalUnits, unitType, contentPerUnit, contentUnit, totalContent, legacyQuantity, legacyUnit any) {
	switch s := stock.(type) {
	case SimpleMeasure:
		return s.QuantityValue, s.QuantityUnit, nil, nil, nil, nil, nil, s.QuantityValue, s.QuantityUnit
	case UnitOnly:
		return nil, nil, s.TotalUnits, s.UnitType, nil, nil, nil, float64(s.TotalUnits), s.UnitType
	case PackWithContent:
		return nil, nil, s.TotalUnits, nil, s.ContentPerUnit, s.ContentUnit, s.TotalContent(), nil, nil
	default:
		return nil, nil, nil, nil, nil, nil, nil, nil, nil
	}
}

// GetItem fetches one item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, &shared.NotFoundError{Entity: "item", ID: strconv.FormatInt(id, 10)}
		}
		return Item{}, translateErr("get item", err)
	}
	return item, nil
}

// ListItems returns items matching the filter, newest first.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr("list items", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, translateErr("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("list items", err)
	}
	return items, nil
}

const containerColumns = `id, item_id, idx, status, initial_content, remaining_content, content_unit, opened_at, created_at`

func scanContainers(rows pgx.Rows) ([]Container, error) {
	defer rows.Close()
	var containers []Container
	for rows.Next() {
		var c Container
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Index, &c.Status, &c.InitialContent, &c.RemainingContent, &c.ContentUnit, &c.OpenedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// ListContainers returns the ledger rows for an item ordered by index.
func (r *Repository) ListContainers(ctx context.Context, itemID int64) ([]Container, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+containerColumns+` FROM containers WHERE item_id=$1 ORDER BY idx`, itemID)
	if err != nil {
		return nil, translateErr("list containers", err)
	}
	containers, err := scanContainers(rows)
	if err != nil {
		return nil, translateErr("list containers", err)
	}
	return containers, nil
}

// ListMutations returns mutation records for an item, most recent first.
func (r *Repository) ListMutations(ctx context.Context, itemID int64, limit int) ([]MutationRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, action, idempotency_key, actor_name, actor_id, source, notes, before_state, after_state, created_at
FROM mutation_records WHERE item_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, translateErr("list mutations", err)
	}
	defer rows.Close()
	var records []MutationRecord
	for rows.Next() {
		record, err := scanMutation(rows)
		if err != nil {
			return nil, translateErr("list mutations", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("list mutations", err)
	}
	return records, nil
}

func scanMutation(row rowScanner) (MutationRecord, error) {
	var (
		record      MutationRecord
		beforeState []byte
		afterState  []byte
	)
	err := row.Scan(&record.ID, &record.ItemID, &record.Action, &record.IdempotencyKey, &record.ActorName,
		&record.ActorID, &record.Source, &record.Notes, &beforeState, &afterState, &record.CreatedAt)
	if err != nil {
		return MutationRecord{}, err
	}
	if len(beforeState) > 0 {
		if err := json.Unmarshal(beforeState, &record.Before); err != nil {
			return MutationRecord{}, err
		}
	}
	if len(afterState) > 0 {
		if err := json.Unmarshal(afterState, &record.After); err != nil {
			return MutationRecord{}, err
		}
	}
	return record, nil
}

// StatusCounts aggregates item counts by status, and by category for active
// items.
func (r *Repository) StatusCounts(ctx context.Context) (map[ItemStatus]int, map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, category, COUNT(*) FROM items GROUP BY status, category`)
	if err != nil {
		return nil, nil, translateErr("status counts", err)
	}
	defer rows.Close()
	statusCounts := map[ItemStatus]int{}
	categoryCounts := map[string]int{}
	for rows.Next() {
		var status ItemStatus
		var category string
		var count int
		if err := rows.Scan(&status, &category, &count); err != nil {
			return nil, nil, translateErr("status counts", err)
		}
		statusCounts[status] += count
		if status == StatusActive {
			categoryCounts[category] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, translateErr("status counts", err)
	}
	return statusCounts, categoryCounts, nil
}

// LowStockItems lists active items under their minimum-stock threshold.
// Availability for packs is the live remaining content from the ledger, never
// a cached value on the item row.
func (r *Repository) LowStockItems(ctx context.Context) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.name, i.category,
  CASE i.tracking_type
    WHEN 'SIMPLE_MEASURE' THEN i.quantity_value
    WHEN 'UNIT_ONLY' THEN i.total_units::float8
    ELSE COALESCE(c.remaining, 0)
  END AS available,
  i.minimum_stock,
  COALESCE(CASE i.tracking_type
    WHEN 'SIMPLE_MEASURE' THEN i.quantity_unit
    WHEN 'UNIT_ONLY' THEN i.unit_type
    ELSE i.content_unit
  END, '') AS unit
FROM items i
LEFT JOIN LATERAL (
  SELECT SUM(remaining_content) AS remaining FROM containers
  WHERE item_id = i.id AND status IN ('sealed', 'opened')
) c ON TRUE
WHERE i.status = 'active' AND i.minimum_stock > 0
  AND (CASE i.tracking_type
    WHEN 'SIMPLE_MEASURE' THEN i.quantity_value
    WHEN 'UNIT_ONLY' THEN i.total_units::float8
    ELSE COALESCE(c.remaining, 0)
  END) < i.minimum_stock
ORDER BY i.name`)
	if err != nil {
		return nil, translateErr("low stock", err)
	}
	defer rows.Close()
	var out []LowStockItem
	for rows.Next() {
		var row LowStockItem
		if err := rows.Scan(&row.ItemID, &row.Name, &row.Category, &row.Available, &row.MinimumStock, &row.Unit); err != nil {
			return nil, translateErr("low stock", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr("low stock", err)
	}
	return out, nil
}

// --- transactional operations ---

func (r *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	quantityValue, quantityUnit, totalUnits, unitType, contentPerUnit, contentUnit, totalContent, legacyQuantity, legacyUnit := stockColumns(item.Stock)
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO items (name, category, tracking_type, quantity_value, quantity_unit, total_units, unit_type,
content_per_unit, content_unit, total_content, quantity, unit, minimum_stock, status, opened_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17) RETURNING id`,
		item.Name, item.Category, item.Stock.Type(), quantityValue, quantityUnit, totalUnits, unitType,
		contentPerUnit, contentUnit, totalContent, legacyQuantity, legacyUnit, item.MinimumStock, item.Status,
		item.OpenedAt, item.CreatedAt, item.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, translateErr("insert item", err)
	}
	return id, nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1 FOR UPDATE`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, &shared.NotFoundError{Entity: "item", ID: strconv.FormatInt(id, 10)}
		}
		return Item{}, translateErr("lock item", err)
	}
	return item, nil
}

// UpdateItem rewrites the quantity columns from the variant, forcing columns
// of inactive tracking types to NULL so stale values can never resurface.
func (r *txRepository) UpdateItem(ctx context.Context, item Item) error {
	quantityValue, quantityUnit, totalUnits, unitType, contentPerUnit, contentUnit, totalContent, legacyQuantity, legacyUnit := stockColumns(item.Stock)
	tag, err := r.tx.Exec(ctx, `UPDATE items SET name=$2, category=$3, tracking_type=$4, quantity_value=$5, quantity_unit=$6,
total_units=$7, unit_type=$8, content_per_unit=$9, content_unit=$10, total_content=$11, quantity=$12, unit=$13,
minimum_stock=$14, status=$15, opened_at=$16, disposed_at=$17, disposed_by=$18, disposal_reason=$19, updated_at=$20
WHERE id=$1`,
		item.ID, item.Name, item.Category, item.Stock.Type(), quantityValue, quantityUnit,
		totalUnits, unitType, contentPerUnit, contentUnit, totalContent, legacyQuantity, legacyUnit,
		item.MinimumStock, item.Status, item.OpenedAt, item.DisposedAt, item.DisposedBy, item.DisposalReason, item.UpdatedAt)
	if err != nil {
		return translateErr("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "item", ID: strconv.FormatInt(item.ID, 10)}
	}
	return nil
}

func (r *txRepository) DeleteItem(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM items WHERE id=$1`, id); err != nil {
		return translateErr("delete item", err)
	}
	return nil
}

func (r *txRepository) InsertContainers(ctx context.Context, containers []Container) error {
	for _, c := range containers {
		if _, err := r.tx.Exec(ctx, `INSERT INTO containers (item_id, idx, status, initial_content, remaining_content, content_unit, opened_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ItemID, c.Index, c.Status, c.InitialContent, c.RemainingContent, c.ContentUnit, c.OpenedAt, c.CreatedAt); err != nil {
			return translateErr("insert containers", err)
		}
	}
	return nil
}

func (r *txRepository) ListContainersForUpdate(ctx context.Context, itemID int64) ([]Container, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+containerColumns+` FROM containers WHERE item_id=$1 ORDER BY idx FOR UPDATE`, itemID)
	if err != nil {
		return nil, translateErr("lock containers", err)
	}
	containers, err := scanContainers(rows)
	if err != nil {
		return nil, translateErr("lock containers", err)
	}
	return containers, nil
}

func (r *txRepository) UpdateContainer(ctx context.Context, container Container) error {
	tag, err := r.tx.Exec(ctx, `UPDATE containers SET status=$2, remaining_content=$3, opened_at=$4 WHERE id=$1`,
		container.ID, container.Status, container.RemainingContent, container.OpenedAt)
	if err != nil {
		return translateErr("update container", err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "container", ID: strconv.FormatInt(container.ID, 10)}
	}
	return nil
}

func (r *txRepository) DeleteContainers(ctx context.Context, itemID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM containers WHERE item_id=$1`, itemID); err != nil {
		return translateErr("delete containers", err)
	}
	return nil
}

// GetMutationByKey looks up a prior mutation with the same operation kind and
// idempotency key; nil means the key has not been processed.
func (r *txRepository) GetMutationByKey(ctx context.Context, action MutationAction, key string) (*MutationRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, item_id, action, idempotency_key, actor_name, actor_id, source, notes, before_state, after_state, created_at
FROM mutation_records WHERE action=$1 AND idempotency_key=$2`, action, key)
	record, err := scanMutation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translateErr("get mutation", err)
	}
	return &record, nil
}

// InsertMutation appends the record; the unique (action, idempotency_key)
// constraint turns a racing duplicate into a ConflictError.
func (r *txRepository) InsertMutation(ctx context.Context, record MutationRecord) (int64, error) {
	beforeState, err := json.Marshal(record.Before)
	if err != nil {
		return 0, err
	}
	afterState, err := json.Marshal(record.After)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO mutation_records (item_id, action, idempotency_key, actor_name, actor_id, source, notes, before_state, after_state, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		record.ItemID, record.Action, record.IdempotencyKey, record.ActorName, record.ActorID,
		record.Source, record.Notes, beforeState, afterState, record.CreatedAt).Scan(&id)
	if err != nil {
		return 0, translateErr("insert mutation", err)
	}
	return id, nil
}

// DeleteMutationsBefore prunes old mutation records; used by the retention
// job. Idempotency keys only need to outlive the caller retry window.
func (r *Repository) DeleteMutationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mutation_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, translateErr("prune mutations", err)
	}
	return tag.RowsAffected(), nil
}
