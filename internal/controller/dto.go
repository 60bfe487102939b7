package controller

import (
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/google/uuid"
)

// ExportRequest asks for the tasks of one terminal transaction to be
// emitted again.
type ExportRequest struct {
	Kind          string `json:"kind" validate:"required,oneof=PlaceOrder ReturnOrder"`
	TransactionID string `json:"transactionId" validate:"required,uuid"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type TransactionResponse struct {
	ID                     uuid.UUID  `json:"id"`
	Kind                   string     `json:"kind"`
	Status                 string     `json:"status"`
	AgentID                string     `json:"agentId"`
	SellerID               string     `json:"sellerId"`
	OrderNumber            string     `json:"orderNumber,omitempty"`
	Expires                time.Time  `json:"expires"`
	StartDate              time.Time  `json:"startDate"`
	EndDate                *time.Time `json:"endDate,omitempty"`
	TasksExportationStatus string     `json:"tasksExportationStatus"`
	TasksExportedAt        *time.Time `json:"tasksExportedAt,omitempty"`
}

func FromTransaction(tx *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                     tx.ID,
		Kind:                   string(tx.Kind),
		Status:                 string(tx.Status),
		AgentID:                tx.Agent.ID,
		SellerID:               tx.Seller.ID,
		Expires:                tx.Expires,
		StartDate:              tx.StartDate,
		EndDate:                tx.EndDate,
		TasksExportationStatus: string(tx.TasksExportationStatus),
		TasksExportedAt:        tx.TasksExportedAt,
	}
	if tx.Result != nil {
		resp.OrderNumber = tx.Result.Order.OrderNumber
	}
	return resp
}

type ExportResponse struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Tasks         []string  `json:"tasks"`
}

func FromExport(id uuid.UUID, ts []*task.Task) ExportResponse {
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, string(t.Name))
	}
	return ExportResponse{TransactionID: id, Tasks: names}
}

type AbortedTaskResponse struct {
	StreamID      string    `json:"streamId"`
	TaskID        string    `json:"taskId"`
	Name          string    `json:"name"`
	NumberOfTried int       `json:"numberOfTried"`
	LastError     string    `json:"lastError"`
	AbortedAt     time.Time `json:"abortedAt"`
}

func FromAborted(ts []infraRedis.AbortedTask) []AbortedTaskResponse {
	out := make([]AbortedTaskResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, AbortedTaskResponse{
			StreamID:      t.StreamID,
			TaskID:        t.TaskID,
			Name:          t.Name,
			NumberOfTried: t.NumberOfTried,
			LastError:     t.LastError,
			AbortedAt:     t.AbortedAt,
		})
	}
	return out
}
