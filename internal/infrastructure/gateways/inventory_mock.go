package gateways

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

type heldReservation struct {
	eventID  string
	seats    []string
	items    map[string]int
	released bool
}

// MockInventoryService holds seats and menu item stock per event in memory.
type MockInventoryService struct {
	chaos

	mu           sync.Mutex
	events       map[string]action.Event
	heldSeats    map[string]string         // event/section/number -> reservation ref
	stock        map[string]map[string]int // event -> item code -> remaining
	reservations map[string]*heldReservation
	releases     int
}

func NewMockInventoryService(opts ...MockOption) *MockInventoryService {
	return &MockInventoryService{
		chaos:        newChaos("inventory", opts),
		events:       make(map[string]action.Event),
		heldSeats:    make(map[string]string),
		stock:        make(map[string]map[string]int),
		reservations: make(map[string]*heldReservation),
	}
}

// AddEvent registers an event that can be reserved.
func (s *MockInventoryService) AddEvent(e action.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

// SetStock limits the quantity of a menu item for an event. Items without
// stock are unlimited.
func (s *MockInventoryService) SetStock(eventID, itemCode string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stock[eventID] == nil {
		s.stock[eventID] = make(map[string]int)
	}
	s.stock[eventID][itemCode] = quantity
}

// Releases returns how many reservations were released.
func (s *MockInventoryService) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// IsHeld reports whether a seat is currently held.
func (s *MockInventoryService) IsHeld(eventID, section, number string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.heldSeats[seatKey(eventID, section, number)]
	return ok
}

func (s *MockInventoryService) ReserveSeats(ctx context.Context, req SeatReservationRequest) (*SeatReservation, error) {
	if err := s.before(ctx, "ReserveSeats"); err != nil {
		return nil, err
	}
	if len(req.Offers) == 0 {
		return nil, domainErrors.ArgumentNull("offers")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.event(req.VenueCode, req.EventID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.Offers))
	seen := make(map[string]bool, len(req.Offers))
	for _, o := range req.Offers {
		key := seatKey(req.EventID, o.SeatSection, o.SeatNumber)
		if _, held := s.heldSeats[key]; held || seen[key] {
			return nil, domainErrors.AlreadyInUse(fmt.Sprintf("seat %s-%s", o.SeatSection, o.SeatNumber), nil)
		}
		seen[key] = true
		keys = append(keys, key)
	}

	ref := uuid.NewString()
	seats := make([]action.ReservedSeat, 0, len(req.Offers))
	for i, o := range req.Offers {
		s.heldSeats[keys[i]] = ref
		seats = append(seats, action.ReservedSeat{
			SeatSection:    o.SeatSection,
			SeatNumber:     o.SeatNumber,
			TicketTypeCode: o.TicketTypeCode,
			TicketName:     "Ticket " + o.TicketTypeCode,
			Price:          o.Price,
			Discount:       o.Discount,
		})
	}
	s.reservations[ref] = &heldReservation{eventID: req.EventID, seats: keys}

	return &SeatReservation{Ref: ref, Event: event, Seats: seats}, nil
}

// ReleaseSeats frees a seat reservation. Releasing twice is a no-op.
func (s *MockInventoryService) ReleaseSeats(ctx context.Context, ref string) error {
	if err := s.before(ctx, "ReleaseSeats"); err != nil {
		return err
	}
	return s.release(ref)
}

func (s *MockInventoryService) ReserveMenuItems(ctx context.Context, req MenuItemReservationRequest) (*MenuItemReservation, error) {
	if err := s.before(ctx, "ReserveMenuItems"); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domainErrors.ArgumentNull("items")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.event(req.VenueCode, req.EventID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]int, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, domainErrors.Argument("quantity", "must be positive")
		}
		wanted[it.ItemCode] += it.Quantity
	}
	stock := s.stock[req.EventID]
	for code, qty := range wanted {
		if left, limited := stock[code]; limited && left < qty {
			return nil, domainErrors.Argument("quantity", fmt.Sprintf("item %s out of stock", code))
		}
	}
	for code, qty := range wanted {
		if _, limited := stock[code]; limited {
			stock[code] -= qty
		}
	}

	ref := uuid.NewString()
	items := make([]action.ReservedMenuItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, action.ReservedMenuItem{
			ItemCode:  it.ItemCode,
			Name:      "Item " + it.ItemCode,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
	}
	s.reservations[ref] = &heldReservation{eventID: req.EventID, items: wanted}

	return &MenuItemReservation{Ref: ref, Event: event, Items: items}, nil
}

// ReleaseMenuItems returns held stock. Releasing twice is a no-op.
func (s *MockInventoryService) ReleaseMenuItems(ctx context.Context, ref string) error {
	if err := s.before(ctx, "ReleaseMenuItems"); err != nil {
		return err
	}
	return s.release(ref)
}

func (s *MockInventoryService) release(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[ref]
	if !ok {
		return domainErrors.NotFound("reservation")
	}
	if r.released {
		return nil
	}
	for _, key := range r.seats {
		delete(s.heldSeats, key)
	}
	if stock := s.stock[r.eventID]; stock != nil {
		for code, qty := range r.items {
			if _, limited := stock[code]; limited {
				stock[code] += qty
			}
		}
	}
	r.released = true
	s.releases++
	return nil
}

func (s *MockInventoryService) event(venueCode, eventID string) (action.Event, error) {
	e, ok := s.events[eventID]
	if !ok {
		return action.Event{}, domainErrors.NotFound("event")
	}
	if venueCode != "" && e.VenueCode != venueCode {
		return action.Event{}, domainErrors.Argument("venueCode", "event is held at another venue")
	}
	return e, nil
}

func seatKey(eventID, section, number string) string {
	return eventID + "/" + section + "/" + number
}
