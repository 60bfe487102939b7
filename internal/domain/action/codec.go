package action

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type envelope struct {
	TypeOf ObjectType      `json:"typeOf"`
	Data   json.RawMessage `json:"data"`
}

// EncodeObject wraps o in a typeOf envelope. A nil object encodes to nil.
func EncodeObject(o Object) ([]byte, error) {
	if o == nil {
		return nil, nil
	}
	return encode(o.ObjectType(), o)
}

// EncodeResult wraps r in a typeOf envelope. A nil result encodes to nil.
func EncodeResult(r Result) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return encode(r.ObjectType(), r)
}

func encode(t ObjectType, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", t, err)
	}
	return json.Marshal(envelope{TypeOf: t, Data: data})
}

// DecodeObject restores an object variant from its envelope.
func DecodeObject(b []byte) (Object, error) {
	if isNull(b) {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal object envelope: %w", err)
	}

	switch env.TypeOf {
	case ObjectCreditCard:
		return decodeAs[CreditCardObject](env)
	case ObjectPointAccount:
		return decodeAs[PointAccountObject](env)
	case ObjectSeatReservation:
		return decodeAs[SeatReservationObject](env)
	case ObjectMenuItem:
		return decodeAs[MenuItemObject](env)
	case ObjectPayment:
		return decodeAs[PaymentObject](env)
	case ObjectReservation:
		return decodeAs[ReservationObject](env)
	case ObjectOrder:
		return decodeAs[OrderObject](env)
	default:
		return nil, fmt.Errorf("unknown object type %q", env.TypeOf)
	}
}

// DecodeResult restores a result variant from its envelope.
func DecodeResult(b []byte) (Result, error) {
	if isNull(b) {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal result envelope: %w", err)
	}

	switch env.TypeOf {
	case ObjectCreditCard:
		return decodeAs[CreditCardResult](env)
	case ObjectPointAccount:
		return decodeAs[PointAccountResult](env)
	case ObjectSeatReservation:
		return decodeAs[SeatReservationResult](env)
	case ObjectMenuItem:
		return decodeAs[MenuItemResult](env)
	case ObjectPayment:
		return decodeAs[PaymentResult](env)
	case ObjectReservation:
		return decodeAs[ReservationResult](env)
	case ObjectOrder:
		return decodeAs[OrderResult](env)
	default:
		return nil, fmt.Errorf("unknown result type %q", env.TypeOf)
	}
}

func decodeAs[T any](env envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", env.TypeOf, err)
	}
	return v, nil
}

func isNull(b []byte) bool {
	return len(b) == 0 || string(b) == "null"
}

type attributesJSON struct {
	Kind             Kind            `json:"typeOf"`
	Agent            Participant     `json:"agent"`
	Recipient        Participant     `json:"recipient"`
	Object           json.RawMessage `json:"object,omitempty"`
	Purpose          Purpose         `json:"purpose"`
	PotentialActions []Attributes    `json:"potentialActions,omitempty"`
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	obj, err := EncodeObject(a.Object)
	if err != nil {
		return nil, err
	}
	return json.Marshal(attributesJSON{
		Kind:             a.Kind,
		Agent:            a.Agent,
		Recipient:        a.Recipient,
		Object:           obj,
		Purpose:          a.Purpose,
		PotentialActions: a.PotentialActions,
	})
}

func (a *Attributes) UnmarshalJSON(b []byte) error {
	var raw attributesJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	obj, err := DecodeObject(raw.Object)
	if err != nil {
		return err
	}
	*a = Attributes{
		Kind:             raw.Kind,
		Agent:            raw.Agent,
		Recipient:        raw.Recipient,
		Object:           obj,
		Purpose:          raw.Purpose,
		PotentialActions: raw.PotentialActions,
	}
	return nil
}

type actionJSON struct {
	ID               uuid.UUID       `json:"id"`
	Kind             Kind            `json:"typeOf"`
	Status           Status          `json:"actionStatus"`
	Agent            Participant     `json:"agent"`
	Recipient        Participant     `json:"recipient"`
	Object           json.RawMessage `json:"object,omitempty"`
	Purpose          Purpose         `json:"purpose"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            *Error          `json:"error,omitempty"`
	PotentialActions []Attributes    `json:"potentialActions,omitempty"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          *time.Time      `json:"endDate,omitempty"`
}

// MarshalJSON is used when actions are snapshotted into transaction documents.
func (a Action) MarshalJSON() ([]byte, error) {
	obj, err := EncodeObject(a.Object)
	if err != nil {
		return nil, err
	}
	res, err := EncodeResult(a.Result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionJSON{
		ID:               a.ID,
		Kind:             a.Kind,
		Status:           a.Status,
		Agent:            a.Agent,
		Recipient:        a.Recipient,
		Object:           obj,
		Purpose:          a.Purpose,
		Result:           res,
		Error:            a.Error,
		PotentialActions: a.PotentialActions,
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
	})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	obj, err := DecodeObject(raw.Object)
	if err != nil {
		return err
	}
	res, err := DecodeResult(raw.Result)
	if err != nil {
		return err
	}
	*a = Action{
		ID:               raw.ID,
		Kind:             raw.Kind,
		Status:           raw.Status,
		Agent:            raw.Agent,
		Recipient:        raw.Recipient,
		Object:           obj,
		Purpose:          raw.Purpose,
		Result:           res,
		Error:            raw.Error,
		PotentialActions: raw.PotentialActions,
		StartDate:        raw.StartDate,
		EndDate:          raw.EndDate,
	}
	return nil
}
