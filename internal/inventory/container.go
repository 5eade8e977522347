package inventory

import (
	"sort"
	"time"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// buildContainers materializes the initial ledger rows for a pack item:
// one container per declared unit, all sealed, full content. When the item
// arrives already opened, container #1 starts opened with its remaining
// content capped at min(content per unit, supplied remaining).
func buildContainers(itemID int64, pack PackWithContent, alreadyOpened bool, openedRemained *float64, now time.Time) []Container {
	containers := make([]Container, 0, pack.TotalUnits)
	for i := int64(1); i <= pack.TotalUnits; i++ {
		c := Container{
			ItemID:           itemID,
			Index:            int(i),
			Status:           ContainerSealed,
			InitialContent:   pack.ContentPerUnit,
			RemainingContent: pack.ContentPerUnit,
			ContentUnit:      pack.ContentUnit,
			CreatedAt:        now,
		}
		if i == 1 && alreadyOpened {
			remaining := pack.ContentPerUnit
			if openedRemained != nil && *openedRemained < remaining {
				remaining = *openedRemained
			}
			if remaining < 0 {
				remaining = 0
			}
			openedAt := now
			c.OpenedAt = &openedAt
			c.RemainingContent = remaining
			c.Status = ContainerOpened
		}
		containers = append(containers, c)
	}
	return containers
}

// drain is the single transition function for container state. Taking any
// amount from a sealed container opens it. A container drained to zero stays
// opened with zero remaining; that is the uniform terminal representation for
// engine deductions, whether by content or by whole units.
func (c *Container) drain(take float64, now time.Time) {
	if c.Status == ContainerSealed {
		c.Status = ContainerOpened
		openedAt := now
		c.OpenedAt = &openedAt
	}
	c.RemainingContent -= take
	if c.RemainingContent <= contentEpsilon {
		c.RemainingContent = 0
	}
}

// tallyContainers recomputes ledger counts. Callers must never cache these on
// the item row; the ledger is the only source of truth.
func tallyContainers(containers []Container) ContainerTally {
	var tally ContainerTally
	for _, c := range containers {
		switch c.Status {
		case ContainerSealed:
			tally.Sealed++
			tally.RemainingContent += c.RemainingContent
		case ContainerOpened:
			tally.Opened++
			tally.RemainingContent += c.RemainingContent
		case ContainerEmpty:
			tally.Empty++
		}
	}
	return tally
}

// drainContent deducts an amount of content across the ledger: opened
// containers first (oldest index first), each drained to zero before the next
// sealed one is broached. Returns the full updated ledger. On insufficient
// stock nothing is applied.
func drainContent(containers []Container, amount float64, now time.Time) ([]Container, error) {
	tally := tallyContainers(containers)
	if amount > tally.RemainingContent+contentEpsilon {
		unit := ""
		if len(containers) > 0 {
			unit = containers[0].ContentUnit
		}
		return nil, &shared.InsufficientStockError{Requested: amount, Available: tally.RemainingContent, Unit: unit}
	}

	updated := make([]Container, len(containers))
	copy(updated, containers)
	order := drainOrder(updated)

	left := amount
	for _, i := range order {
		if left <= contentEpsilon {
			break
		}
		c := &updated[i]
		take := c.RemainingContent
		if take > left {
			take = left
		}
		if take <= 0 {
			continue
		}
		c.drain(take, now)
		left -= take
	}
	return updated, nil
}

// drainOrder yields indexes into the slice: opened containers by ascending
// index, then sealed ones by ascending index.
func drainOrder(containers []Container) []int {
	var opened, sealed []int
	for i, c := range containers {
		switch c.Status {
		case ContainerOpened:
			opened = append(opened, i)
		case ContainerSealed:
			sealed = append(sealed, i)
		}
	}
	byIndex := func(ids []int) {
		sort.Slice(ids, func(a, b int) bool {
			return containers[ids[a]].Index < containers[ids[b]].Index
		})
	}
	byIndex(opened)
	byIndex(sealed)
	return append(opened, sealed...)
}

// removeSealedUnits consumes whole sealed containers, lowest index first.
// Only sealed containers are eligible; each consumed one is drained in full.
func removeSealedUnits(containers []Container, count int64, now time.Time) ([]Container, error) {
	var sealed []int
	for i, c := range containers {
		if c.Status == ContainerSealed {
			sealed = append(sealed, i)
		}
	}
	if count > int64(len(sealed)) {
		return nil, &shared.InsufficientStockError{Requested: float64(count), Available: float64(len(sealed)), Unit: "units"}
	}
	sort.Slice(sealed, func(a, b int) bool {
		return containers[sealed[a]].Index < containers[sealed[b]].Index
	})

	updated := make([]Container, len(containers))
	copy(updated, containers)
	for _, i := range sealed[:count] {
		c := &updated[i]
		c.drain(c.RemainingContent, now)
	}
	return updated, nil
}
