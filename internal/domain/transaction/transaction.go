package transaction

import (
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/google/uuid"
)

// Kind represents the type of transaction
type Kind string

const (
	KindPlaceOrder  Kind = "PlaceOrder"
	KindReturnOrder Kind = "ReturnOrder"
)

// Status represents the transaction status in the state machine
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusConfirmed  Status = "Confirmed"
	StatusCanceled   Status = "Canceled"
	StatusExpired    Status = "Expired"
)

// ExportationStatus guards the one-time emission of follow-up tasks.
type ExportationStatus string

const (
	Unexported ExportationStatus = "Unexported"
	Exporting  ExportationStatus = "Exporting"
	Exported   ExportationStatus = "Exported"
)

// Seller is the organization selling through the transaction.
type Seller struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VenueCode string `json:"venueCode"`
}

// CustomerContact is the buyer contact set before confirmation.
type CustomerContact struct {
	GivenName  string `json:"givenName" validate:"required"`
	FamilyName string `json:"familyName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Telephone  string `json:"telephone" validate:"required,e164"`
}

// ReturnTarget identifies the confirmed order a return transaction reverses.
type ReturnTarget struct {
	TransactionID uuid.UUID `json:"transactionId"`
	OrderNumber   string    `json:"orderNumber"`
}

// Object is the mutable working object of an in-progress transaction.
type Object struct {
	PassportToken    string           `json:"passportToken,omitempty"`
	ClientUser       string           `json:"clientUser,omitempty"`
	CustomerContact  *CustomerContact `json:"customerContact,omitempty"`
	AuthorizeActions []*action.Action `json:"authorizeActions,omitempty"`
	ReturnTarget     *ReturnTarget    `json:"returnTarget,omitempty"`
}

// Result is fixed at confirmation.
type Result struct {
	Order          order.Order           `json:"order"`
	OwnershipInfos []order.OwnershipInfo `json:"ownershipInfos,omitempty"`
}

// Transaction represents a buyer/seller negotiation
type Transaction struct {
	ID                     uuid.UUID
	Kind                   Kind
	Status                 Status
	Agent                  action.Participant
	Seller                 Seller
	Object                 Object
	Result                 *Result
	PotentialActions       []action.Attributes
	Error                  *action.Error
	Expires                time.Time
	StartDate              time.Time
	EndDate                *time.Time
	TasksExportationStatus ExportationStatus
	TasksExportedAt        *time.Time
	UpdatedAt              time.Time
}

// New creates an InProgress transaction
func New(kind Kind, agent action.Participant, seller Seller, object Object, expires, now time.Time) (*Transaction, error) {
	if agent.ID == "" {
		return nil, errors.ArgumentNull("agent.id")
	}
	if seller.ID == "" {
		return nil, errors.ArgumentNull("seller.id")
	}
	if !expires.After(now) {
		return nil, errors.Argument("expires", "must be in the future")
	}

	return &Transaction{
		ID:                     uuid.New(),
		Kind:                   kind,
		Status:                 StatusInProgress,
		Agent:                  agent,
		Seller:                 seller,
		Object:                 object,
		Expires:                expires,
		StartDate:              now,
		TasksExportationStatus: Unexported,
		UpdatedAt:              now,
	}, nil
}

// CanTransitionTo checks if the transaction can move to the given status.
// Only InProgress has outgoing transitions.
func (t *Transaction) CanTransitionTo(newStatus Status) bool {
	if t.Status != StatusInProgress {
		return false
	}
	switch newStatus {
	case StatusConfirmed, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal checks if the transaction left InProgress
func (t *Transaction) IsTerminal() bool {
	return t.Status != StatusInProgress
}

// IsAgent reports whether callerID is the transaction agent.
func (t *Transaction) IsAgent(callerID string) bool {
	return t.Agent.ID == callerID
}

// RequireAgent returns Forbidden unless callerID is the transaction agent.
func (t *Transaction) RequireAgent(callerID string) error {
	if !t.IsAgent(callerID) {
		return errors.Forbidden("caller is not the transaction agent")
	}
	return nil
}

// Purpose is the back-reference stored on actions serving this transaction.
func (t *Transaction) Purpose() action.Purpose {
	return action.TransactionPurpose(string(t.Kind), t.ID)
}

// ConfirmParams carries everything frozen by the confirm write.
type ConfirmParams struct {
	Kind             Kind
	ID               uuid.UUID
	AuthorizeActions []*action.Action
	Result           Result
	PotentialActions []action.Attributes
}
