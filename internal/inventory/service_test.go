package inventory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

type memoryRepo struct {
	items      map[int64]Item
	containers map[int64][]Container
	mutations  []MutationRecord
	nextItem   int64
	nextCont   int64
	nextMut    int64
	lockReads  int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:      make(map[int64]Item),
		containers: make(map[int64][]Container),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, &shared.NotFoundError{Entity: "item", ID: strconv.FormatInt(id, 10)}
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		items = append(items, item)
	}
	return items, nil
}

func (r *memoryRepo) ListContainers(ctx context.Context, itemID int64) ([]Container, error) {
	out := make([]Container, len(r.containers[itemID]))
	copy(out, r.containers[itemID])
	return out, nil
}

func (r *memoryRepo) ListMutations(ctx context.Context, itemID int64, limit int) ([]MutationRecord, error) {
	var out []MutationRecord
	for i := len(r.mutations) - 1; i >= 0 && len(out) < limit; i-- {
		if r.mutations[i].ItemID == itemID {
			out = append(out, r.mutations[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) StatusCounts(ctx context.Context) (map[ItemStatus]int, map[string]int, error) {
	statusCounts := map[ItemStatus]int{}
	categoryCounts := map[string]int{}
	for _, item := range r.items {
		statusCounts[item.Status]++
		if item.Status == StatusActive {
			categoryCounts[string(item.Category)]++
		}
	}
	return statusCounts, categoryCounts, nil
}

func (r *memoryRepo) LowStockItems(ctx context.Context) ([]LowStockItem, error) {
	var out []LowStockItem
	for _, item := range r.items {
		if item.Status != StatusActive || item.MinimumStock <= 0 {
			continue
		}
		tally := tallyContainers(r.containers[item.ID])
		if belowMinimum(item, tally) {
			qty, unit := authoritativeQuantity(item.Stock)
			if _, ok := item.Stock.(PackWithContent); ok {
				qty = tally.RemainingContent
			}
			out = append(out, LowStockItem{ItemID: item.ID, Name: item.Name, Category: item.Category,
				Available: qty, MinimumStock: item.MinimumStock, Unit: unit})
		}
	}
	return out, nil
}

func (r *memoryRepo) countMutations(action MutationAction) int {
	n := 0
	for _, m := range r.mutations {
		if m.Action == action {
			n++
		}
	}
	return n
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextItem++
	item.ID = tx.repo.nextItem
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	tx.repo.lockReads++
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := tx.repo.items[item.ID]; !ok {
		return &shared.NotFoundError{Entity: "item", ID: strconv.FormatInt(item.ID, 10)}
	}
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	delete(tx.repo.items, id)
	return nil
}

func (tx *memoryTx) InsertContainers(ctx context.Context, containers []Container) error {
	for _, c := range containers {
		tx.repo.nextCont++
		c.ID = tx.repo.nextCont
		tx.repo.containers[c.ItemID] = append(tx.repo.containers[c.ItemID], c)
	}
	return nil
}

func (tx *memoryTx) ListContainersForUpdate(ctx context.Context, itemID int64) ([]Container, error) {
	return tx.repo.ListContainers(ctx, itemID)
}

func (tx *memoryTx) UpdateContainer(ctx context.Context, container Container) error {
	rows := tx.repo.containers[container.ItemID]
	for i := range rows {
		if rows[i].ID == container.ID {
			rows[i] = container
			return nil
		}
	}
	return &shared.NotFoundError{Entity: "container", ID: strconv.FormatInt(container.ID, 10)}
}

func (tx *memoryTx) DeleteContainers(ctx context.Context, itemID int64) error {
	delete(tx.repo.containers, itemID)
	return nil
}

func (tx *memoryTx) GetMutationByKey(ctx context.Context, action MutationAction, key string) (*MutationRecord, error) {
	for i := range tx.repo.mutations {
		if tx.repo.mutations[i].Action == action && tx.repo.mutations[i].IdempotencyKey == key {
			record := tx.repo.mutations[i]
			return &record, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) InsertMutation(ctx context.Context, record MutationRecord) (int64, error) {
	tx.repo.nextMut++
	record.ID = tx.repo.nextMut
	tx.repo.mutations = append(tx.repo.mutations, record)
	return record.ID, nil
}

type failingAudit struct {
	err error
}

func (f failingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	return f.err
}

func actor() shared.Actor {
	return shared.Actor{Name: "tester"}
}

func intakePack(t *testing.T, svc *Service, units int64, perUnit float64) int64 {
	t.Helper()
	result, err := svc.Intake(context.Background(), IntakeInput{
		Name:           "Ethanol 96%",
		Category:       CategoryChemical,
		Stock:          PackWithContent{TotalUnits: units, ContentPerUnit: perUnit, ContentUnit: "g"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	return result.Item.ID
}

func TestIntakeBuildsContainerLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	itemID := intakePack(t, svc, 4, 500)

	containers := repo.containers[itemID]
	require.Len(t, containers, 4)
	for _, c := range containers {
		require.Equal(t, ContainerSealed, c.Status)
		require.InDelta(t, 500, c.RemainingContent, 0.0001)
	}

	require.Equal(t, 1, repo.countMutations(ActionIntake))
	record := repo.mutations[0]
	require.NotNil(t, record.After.SealedCount)
	require.Equal(t, 4, *record.After.SealedCount)
	require.InDelta(t, 2000, *record.After.RemainingContent, 0.0001)
}

func TestUseContentDrainsAcrossContainers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	itemID := intakePack(t, svc, 2, 50)

	result, err := svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseContent,
		Amount:         60,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.False(t, result.Replayed)

	containers := repo.containers[itemID]
	require.Equal(t, ContainerOpened, containers[0].Status)
	require.InDelta(t, 0, containers[0].RemainingContent, 0.0001)
	require.Equal(t, ContainerOpened, containers[1].Status)
	require.InDelta(t, 40, containers[1].RemainingContent, 0.0001)

	after := result.Record.After
	require.Equal(t, 0, *after.SealedCount)
	require.Equal(t, 2, *after.OpenedCount)
	require.Equal(t, 0, *after.EmptyCount)
	require.InDelta(t, 40, *after.RemainingContent, 0.0001)
}

func TestUseReplaysOnSameIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Nitrile gloves",
		Category:       CategoryConsumable,
		Stock:          UnitOnly{TotalUnits: 200, UnitType: "pair"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	key := uuid.NewString()
	input := UseInput{ItemID: intake.Item.ID, Mode: UseUnits, Amount: 5, Actor: actor(), IdempotencyKey: key}

	first, err := svc.Use(ctx, input)
	require.NoError(t, err)
	require.False(t, first.Replayed)
	locksAfterFirst := repo.lockReads

	second, err := svc.Use(ctx, input)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Record.ID, second.Record.ID)
	require.EqualValues(t, 195, second.Item.Stock.(UnitOnly).TotalUnits)

	// The replay decorates its result with a plain read, no row lock.
	require.Equal(t, locksAfterFirst, repo.lockReads)

	// The deduction applied exactly once.
	item, err := repo.GetItem(ctx, intake.Item.ID)
	require.NoError(t, err)
	require.EqualValues(t, 195, item.Stock.(UnitOnly).TotalUnits)
	require.Equal(t, 1, repo.countMutations(ActionUse))
}

func TestUseInsufficientLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	itemID := intakePack(t, svc, 1, 30)

	_, err := svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseContent,
		Amount:         50,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	containers := repo.containers[itemID]
	require.Equal(t, ContainerSealed, containers[0].Status)
	require.InDelta(t, 30, containers[0].RemainingContent, 0.0001)
	require.Equal(t, 0, repo.countMutations(ActionUse))
}

func TestUseUnitOnlyInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Petri dishes",
		Category:       CategoryConsumable,
		Stock:          UnitOnly{TotalUnits: 3, UnitType: "pcs"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	itemID := intake.Item.ID

	result, err := svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseUnits,
		Amount:         1,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, result.Item.Stock.(UnitOnly).TotalUnits)

	_, err = svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseUnits,
		Amount:         5,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.InDelta(t, 5, insufficient.Requested, 0.0001)
	require.InDelta(t, 2, insufficient.Available, 0.0001)

	item, err := repo.GetItem(ctx, itemID)
	require.NoError(t, err)
	require.EqualValues(t, 2, item.Stock.(UnitOnly).TotalUnits)
	require.Equal(t, 1, repo.countMutations(ActionUse))
}

func TestUseSimpleMeasureInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Acetone",
		Category:       CategoryChemical,
		Stock:          SimpleMeasure{QuantityValue: 100, QuantityUnit: "ml"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.Use(ctx, UseInput{
		ItemID:         intake.Item.ID,
		Mode:           UseContent,
		Amount:         150,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	item, err := repo.GetItem(ctx, intake.Item.ID)
	require.NoError(t, err)
	require.InDelta(t, 100, item.Stock.(SimpleMeasure).QuantityValue, 0.0001)
	require.Equal(t, 0, repo.countMutations(ActionUse))
}

func TestUseRejectsOversizedUnitAmount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Nitrile gloves",
		Category:       CategoryConsumable,
		Stock:          UnitOnly{TotalUnits: 200, UnitType: "pair"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	itemID := intake.Item.ID

	// An amount past int64 must fail validation, not wrap into a negative
	// unit count.
	var validationErr *shared.ValidationError
	_, err = svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseUnits,
		Amount:         1e300,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "amount", validationErr.Field)

	_, err = svc.Restock(ctx, RestockInput{
		ItemID:         itemID,
		Amount:         1e300,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.ErrorAs(t, err, &validationErr)

	item, err := repo.GetItem(ctx, itemID)
	require.NoError(t, err)
	units := item.Stock.(UnitOnly).TotalUnits
	require.EqualValues(t, 200, units)
	require.GreaterOrEqual(t, units, int64(0))
	require.Equal(t, 0, repo.countMutations(ActionUse))
	require.Equal(t, 0, repo.countMutations(ActionRestock))
}

func TestUseModeMustMatchTrackingType(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Buffer solution",
		Category:       CategoryChemical,
		Stock:          SimpleMeasure{QuantityValue: 500, QuantityUnit: "ml"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.Use(ctx, UseInput{
		ItemID:         intake.Item.ID,
		Mode:           UseUnits,
		Amount:         1,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "mode", validationErr.Field)
}

func TestRestockPackRaisesNominalCountOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	itemID := intakePack(t, svc, 4, 500)

	result, err := svc.Restock(ctx, RestockInput{
		ItemID:         itemID,
		Amount:         2,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 6, result.Item.Stock.(PackWithContent).TotalUnits)

	// No new container rows appear on restock.
	require.Len(t, repo.containers[itemID], 4)
}

func TestAdjustSetsAbsoluteQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Pipette tips",
		Category:       CategoryConsumable,
		Stock:          UnitOnly{TotalUnits: 96, UnitType: "pcs"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	result, err := svc.Adjust(ctx, AdjustInput{
		ItemID:         intake.Item.ID,
		NewQuantity:    0,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, result.Item.Stock.(UnitOnly).TotalUnits)

	_, err = svc.Adjust(ctx, AdjustInput{
		ItemID:         intake.Item.ID,
		NewQuantity:    2.5,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.Error(t, err)
}

func TestDisposeAndRestore(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Expired reagent",
		Category:       CategoryChemical,
		Stock:          SimpleMeasure{QuantityValue: 250, QuantityUnit: "ml"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	itemID := intake.Item.ID

	disposed, err := svc.Dispose(ctx, DisposeInput{
		ItemID:         itemID,
		Reason:         "past expiry date",
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusDisposed, disposed.Item.Status)
	require.InDelta(t, 0, disposed.Item.Stock.(SimpleMeasure).QuantityValue, 0.0001)
	require.NotNil(t, disposed.Item.DisposedAt)
	require.Equal(t, "past expiry date", *disposed.Item.DisposalReason)

	// Disposal of quantity is destructive: restore does not bring it back.
	restored, err := svc.Restore(ctx, RestoreInput{
		ItemID:         itemID,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, restored.Item.Status)
	require.InDelta(t, 0, restored.Item.Stock.(SimpleMeasure).QuantityValue, 0.0001)
	require.Nil(t, restored.Item.DisposedAt)
	require.Nil(t, restored.Item.DisposalReason)

	_, err = svc.Restore(ctx, RestoreInput{
		ItemID:         itemID,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "Item is already active", validationErr.Message)
}

func TestMutationsRequireActiveItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	intake, err := svc.Intake(ctx, IntakeInput{
		Name:           "Old stock",
		Category:       CategoryConsumable,
		Stock:          UnitOnly{TotalUnits: 5, UnitType: "pcs"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.Archive(ctx, ArchiveInput{
		ItemID:         intake.Item.ID,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = svc.Use(ctx, UseInput{
		ItemID:         intake.Item.ID,
		Mode:           UseUnits,
		Amount:         1,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.ErrorIs(t, err, ErrItemNotActive)
}

func TestMutationMetaValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Use(ctx, UseInput{ItemID: 1, Mode: UseUnits, Amount: 1, Actor: actor(), IdempotencyKey: ""})
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "idempotency_key", validationErr.Field)

	_, err = svc.Use(ctx, UseInput{ItemID: 1, Mode: UseUnits, Amount: 1, Actor: actor(), IdempotencyKey: "not-a-uuid"})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "idempotency_key", validationErr.Field)

	_, err = svc.Use(ctx, UseInput{ItemID: 1, Mode: UseUnits, Amount: 1, IdempotencyKey: uuid.NewString()})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "actor", validationErr.Field)
}

func TestHardDeleteRejectsActiveItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	itemID := intakePack(t, svc, 2, 100)

	err := svc.HardDelete(ctx, itemID, actor())
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.Archive(ctx, ArchiveInput{ItemID: itemID, Actor: actor(), IdempotencyKey: uuid.NewString()})
	require.NoError(t, err)

	require.NoError(t, svc.HardDelete(ctx, itemID, actor()))
	_, err = repo.GetItem(ctx, itemID)
	var notFound *shared.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Empty(t, repo.containers[itemID])

	// Mutation records survive the delete.
	require.Equal(t, 1, repo.countMutations(ActionIntake))
}

func TestGetItemDetailTally(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	itemID := intakePack(t, svc, 2, 50)
	_, err := svc.Use(ctx, UseInput{
		ItemID:         itemID,
		Mode:           UseContent,
		Amount:         60,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	detail, err := svc.GetItemDetail(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, 0, detail.Tally.Sealed)
	require.Equal(t, 2, detail.Tally.Opened)
	require.InDelta(t, 40, detail.Tally.RemainingContent, 0.0001)
}

func TestSummaryWithoutCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Intake(ctx, IntakeInput{
		Name:           "Saline",
		Category:       CategoryChemical,
		Stock:          SimpleMeasure{QuantityValue: 20, QuantityUnit: "ml"},
		MinimumStock:   100,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ActiveItems)
	require.Equal(t, 1, summary.ByCategory["chemical"])
	require.Len(t, summary.LowStock, 1)
	require.InDelta(t, 20, summary.LowStock[0].Available, 0.0001)
}

func TestMutationSucceedsWhenAuditSinkFails(t *testing.T) {
	repo := newMemoryRepo()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	svc := NewService(repo, failingAudit{err: errors.New("sink down")}, nil, logger)
	ctx := context.Background()

	result, err := svc.Intake(ctx, IntakeInput{
		Name:           "Methanol",
		Category:       CategoryChemical,
		Stock:          SimpleMeasure{QuantityValue: 250, QuantityUnit: "ml"},
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, repo.countMutations(ActionIntake))

	// The audit copy is best-effort; the failure surfaces as a warning.
	require.Contains(t, logs.String(), "audit record")
	require.Contains(t, logs.String(), "sink down")

	_, err = svc.Use(ctx, UseInput{
		ItemID:         result.Item.ID,
		Mode:           UseContent,
		Amount:         50,
		Actor:          actor(),
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
}
