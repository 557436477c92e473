package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusUnassigned OrderStatus = "unassigned"
	OrderStatusClaimed    OrderStatus = "claimed"
	OrderStatusScheduled  OrderStatus = "scheduled"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// SlotStatus is the lifecycle state of a time slot
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusClaimed   SlotStatus = "claimed"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// orderTransitions lists every status an order may move to from a given one.
// Terminal statuses map to nothing.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnassigned: {OrderStatusClaimed, OrderStatusScheduled, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusClaimed:    {OrderStatusScheduled, OrderStatusInProgress, OrderStatusCompleted, OrderStatusUnassigned, OrderStatusCancelled},
	OrderStatusScheduled:  {OrderStatusInProgress, OrderStatusCompleted, OrderStatusUnassigned, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  nil,
	OrderStatusCancelled:  nil,
}

var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotStatusAvailable: {SlotStatusClaimed, SlotStatusCancelled},
	SlotStatusClaimed:   {SlotStatusCompleted, SlotStatusCancelled},
	SlotStatusCompleted: nil,
	SlotStatusCancelled: nil,
}

// OrderStatuses returns all order statuses in lifecycle order
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusUnassigned, OrderStatusClaimed, OrderStatusScheduled,
		OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled,
	}
}

// SlotStatuses returns all slot statuses in lifecycle order
func SlotStatuses() []SlotStatus {
	return []SlotStatus{SlotStatusAvailable, SlotStatusClaimed, SlotStatusCompleted, SlotStatusCancelled}
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether the order state machine allows s -> next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known slot status
func (s SlotStatus) Valid() bool {
	_, ok := slotTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible
func (s SlotStatus) IsTerminal() bool {
	return s.Valid() && len(slotTransitions[s]) == 0
}

// CanTransitionTo reports whether the slot state machine allows s -> next
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	for _, allowed := range slotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CountsTowardCapacity reports whether a slot in this status occupies a
// subcontractor's daily capacity. Claimed and completed work both count.
func (s SlotStatus) CountsTowardCapacity() bool {
	return s != SlotStatusCancelled
}
