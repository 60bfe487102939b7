package action

import (
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

// Kind is the action type.
type Kind string

const (
	KindAuthorize Kind = "AuthorizeAction"
	KindPay       Kind = "PayAction"
	KindRefund    Kind = "RefundAction"
	KindCancel    Kind = "CancelAction"
	KindSend      Kind = "SendAction"
	KindReturn    Kind = "ReturnAction"
	KindOrder     Kind = "OrderAction"
)

// Status is the action status. Active is the only non-ended status.
type Status string

const (
	StatusActive    Status = "ActiveActionStatus"
	StatusCompleted Status = "CompletedActionStatus"
	StatusCanceled  Status = "CanceledActionStatus"
	StatusFailed    Status = "FailedActionStatus"
)

// IsEnded reports whether the action left Active.
func (s Status) IsEnded() bool {
	return s != StatusActive
}

// ParticipantType distinguishes people from organizations.
type ParticipantType string

const (
	Person       ParticipantType = "Person"
	Organization ParticipantType = "Organization"
)

// Participant is an agent or recipient of an action.
type Participant struct {
	Type ParticipantType `json:"typeOf"`
	ID   string          `json:"id"`
	Name string          `json:"name,omitempty"`
}

// Purpose points back to what the action serves: a transaction or an order.
type Purpose struct {
	TypeOf string `json:"typeOf"`
	ID     string `json:"id"`
}

// Error is the serialized failure stored on a Failed action.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError serializes err for persistence.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: domainErrors.CodeOf(err), Message: err.Error()}
}

// Attributes describe an action before it exists. PotentialActions forms the
// declarative follow-up tree executed later by the task engine.
type Attributes struct {
	Kind             Kind
	Agent            Participant
	Recipient        Participant
	Object           Object
	Purpose          Purpose
	PotentialActions []Attributes
}

// Action is a recorded action document.
type Action struct {
	ID               uuid.UUID
	Kind             Kind
	Status           Status
	Agent            Participant
	Recipient        Participant
	Object           Object
	Purpose          Purpose
	Result           Result
	Error            *Error
	PotentialActions []Attributes
	StartDate        time.Time
	EndDate          *time.Time
}

// New creates an Active action from attributes.
func New(attrs Attributes, now time.Time) *Action {
	return &Action{
		ID:               uuid.New(),
		Kind:             attrs.Kind,
		Status:           StatusActive,
		Agent:            attrs.Agent,
		Recipient:        attrs.Recipient,
		Object:           attrs.Object,
		Purpose:          attrs.Purpose,
		PotentialActions: attrs.PotentialActions,
		StartDate:        now,
	}
}

// ObjectType returns the tag of the action object, or "" when absent.
func (a *Action) ObjectType() ObjectType {
	if a.Object == nil {
		return ""
	}
	return a.Object.ObjectType()
}

// EndedBefore reports whether the action ended strictly before t.
func (a *Action) EndedBefore(t time.Time) bool {
	return a.EndDate != nil && a.EndDate.Before(t)
}

// CompletedBefore filters actions that completed strictly before t.
func CompletedBefore(actions []*Action, t time.Time) []*Action {
	out := make([]*Action, 0, len(actions))
	for _, a := range actions {
		if a.Status == StatusCompleted && a.EndedBefore(t) {
			out = append(out, a)
		}
	}
	return out
}

// Completed filters actions in the Completed status.
func Completed(actions []*Action) []*Action {
	out := make([]*Action, 0, len(actions))
	for _, a := range actions {
		if a.Status == StatusCompleted {
			out = append(out, a)
		}
	}
	return out
}

// OfType filters actions by object type.
func OfType(actions []*Action, t ObjectType) []*Action {
	out := make([]*Action, 0, len(actions))
	for _, a := range actions {
		if a.ObjectType() == t {
			out = append(out, a)
		}
	}
	return out
}

// TransactionPurpose builds the back-reference to a transaction.
func TransactionPurpose(kind string, id uuid.UUID) Purpose {
	return Purpose{TypeOf: kind, ID: id.String()}
}

// PurposeOrder is the purpose type of actions serving a confirmed order.
const PurposeOrder = "Order"

// OrderPurpose builds the back-reference to an order.
func OrderPurpose(orderNumber string) Purpose {
	return Purpose{TypeOf: PurposeOrder, ID: orderNumber}
}
