package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaswantjat/field-service-os/models"
)

// Every status change in the system goes through transitionSlot or
// transitionOrder. Both check the transition table first, then issue a
// conditional UPDATE keyed on the status the caller read, so a concurrent
// writer that got there first turns into a conflict instead of a lost update.

// Rows are always locked in the order: order, slot, subcontractor. Paths that
// start from a slot id read the slot's order id first so they can follow it.

// lockSlotAndOrder locks a slot together with the order it belongs to. The
// order is nil if it no longer exists.
func lockSlotAndOrder(tx *gorm.DB, slotID uint) (*models.TimeSlot, *models.Order, error) {
	var ref models.TimeSlot
	if err := tx.Select("id", "order_id").First(&ref, slotID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, NotFoundError("TIME_SLOT_NOT_FOUND", "Time slot not found")
		}
		return nil, nil, InternalError("Failed to load time slot", err)
	}

	order, err := lockOrder(tx, ref.OrderID)
	if err != nil && !IsCode(err, "ORDER_NOT_FOUND") {
		return nil, nil, err
	}

	slot, err := lockSlot(tx, slotID)
	if err != nil {
		return nil, nil, err
	}
	return slot, order, nil
}

// lockSlot loads a slot for update inside tx
func lockSlot(tx *gorm.DB, id uint) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&slot, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("TIME_SLOT_NOT_FOUND", "Time slot not found")
		}
		return nil, InternalError("Failed to load time slot", err)
	}
	return &slot, nil
}

// lockOrder loads an order for update inside tx
func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundError("ORDER_NOT_FOUND", "Order not found")
		}
		return nil, InternalError("Failed to load order", err)
	}
	return &order, nil
}

func slotTransitionError(from, to models.SlotStatus) *Error {
	switch {
	case to == models.SlotStatusClaimed && from == models.SlotStatusClaimed:
		return ConflictError("SLOT_ALREADY_CLAIMED", "Time slot has already been claimed")
	case to == models.SlotStatusClaimed:
		return ConflictError("SLOT_NOT_AVAILABLE", fmt.Sprintf("Time slot is not available (status: %s)", from))
	case to == models.SlotStatusCancelled && from == models.SlotStatusCompleted:
		return ConflictError("CANNOT_CANCEL_COMPLETED", "Cannot cancel a completed time slot")
	case to == models.SlotStatusCancelled && from == models.SlotStatusCancelled:
		return ConflictError("SLOT_ALREADY_CANCELLED", "Time slot is already cancelled")
	case to == models.SlotStatusCompleted && from == models.SlotStatusCompleted:
		return ConflictError("TIME_SLOT_ALREADY_COMPLETED", "Time slot is already completed")
	case to == models.SlotStatusCompleted:
		return ConflictError("INVALID_TIME_SLOT_STATUS", fmt.Sprintf("Time slot status must be 'claimed', current status: %s", from))
	default:
		return ConflictError("INVALID_STATUS_TRANSITION", fmt.Sprintf("Time slot cannot move from %s to %s", from, to))
	}
}

func orderTransitionError(from, to models.OrderStatus) *Error {
	switch {
	case from == models.OrderStatusCancelled:
		return ConflictError("ORDER_CANCELLED", "Order has been cancelled")
	case from == models.OrderStatusCompleted:
		return ConflictError("ORDER_ALREADY_COMPLETED", "Order is already completed")
	default:
		return ConflictError("INVALID_STATUS_TRANSITION", fmt.Sprintf("Order cannot move from %s to %s", from, to))
	}
}

// transitionSlot moves slot to next. extra carries the columns that change
// together with the status (subcontractor, claimed_at). On success the
// in-memory slot reflects the new state.
func transitionSlot(tx *gorm.DB, slot *models.TimeSlot, next models.SlotStatus, extra map[string]interface{}) error {
	from := slot.Status
	if !from.CanTransitionTo(next) {
		return slotTransitionError(from, next)
	}

	updates := map[string]interface{}{
		"status":       next,
		"is_available": next == models.SlotStatusAvailable,
	}
	for column, value := range extra {
		updates[column] = value
	}

	res := tx.Model(&models.TimeSlot{}).
		Where("id = ? AND status = ?", slot.ID, from).
		Updates(updates)
	if res.Error != nil {
		return InternalError("Failed to update time slot", res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone moved the slot between our read and write.
		var current models.TimeSlot
		if err := tx.Select("status").First(&current, slot.ID).Error; err == nil {
			return slotTransitionError(current.Status, next)
		}
		return ConflictError("INVALID_STATUS_TRANSITION", "Time slot changed concurrently")
	}

	if err := tx.First(slot, slot.ID).Error; err != nil {
		return InternalError("Failed to reload time slot", err)
	}
	return nil
}

// transitionOrder moves order to next
func transitionOrder(tx *gorm.DB, order *models.Order, next models.OrderStatus) error {
	from := order.Status
	if !from.CanTransitionTo(next) {
		return orderTransitionError(from, next)
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, from).
		Updates(map[string]interface{}{"status": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return InternalError("Failed to update order", res.Error)
	}
	if res.RowsAffected == 0 {
		return ConflictError("INVALID_STATUS_TRANSITION", "Order changed concurrently")
	}

	order.Status = next
	return nil
}

// cascadeOrder moves a locked order to next only when it currently sits in
// one of the given statuses. It reports whether the order changed. A nil
// order (removed by an admin delete) is left alone.
func cascadeOrder(tx *gorm.DB, order *models.Order, next models.OrderStatus, when ...models.OrderStatus) (bool, error) {
	if order == nil {
		return false, nil
	}

	eligible := false
	for _, status := range when {
		if order.Status == status {
			eligible = true
			break
		}
	}
	if !eligible {
		return false, nil
	}

	if err := transitionOrder(tx, order, next); err != nil {
		return false, err
	}
	return true, nil
}
