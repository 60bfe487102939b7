package controller

import (
	"context"
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultAbortedCount = 20
	maxAbortedCount     = 500
)

// TaskExporter emits the tasks of one terminal transaction.
type TaskExporter interface {
	ExportTasksByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) ([]*task.Task, error)
}

// AbortedReader lists the most recently aborted tasks.
type AbortedReader interface {
	RecentAborted(ctx context.Context, count int64) ([]infraRedis.AbortedTask, error)
}

type TaskController struct {
	transactions transaction.Repository
	exporter     TaskExporter
	aborted      AbortedReader
}

func NewTaskController(transactions transaction.Repository, exporter TaskExporter, aborted AbortedReader) *TaskController {
	return &TaskController{transactions: transactions, exporter: exporter, aborted: aborted}
}

// GetTransaction handles GET /transactions/{kind}/{id}
func (c *TaskController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a uuid"))
		return
	}

	tx, err := c.transactions.FindByID(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// Export handles POST /tasks/export
func (c *TaskController) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := uuid.MustParse(req.TransactionID)

	emitted, err := c.exporter.ExportTasksByID(r.Context(), transaction.Kind(req.Kind), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromExport(id, emitted))
}

// Aborted handles GET /tasks/aborted?count=N
func (c *TaskController) Aborted(w http.ResponseWriter, r *http.Request) {
	count := int64(defaultAbortedCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxAbortedCount {
			writeError(w, domainErrors.NewValidationError("count", "must be between 1 and 500"))
			return
		}
		count = n
	}

	recent, err := c.aborted.RecentAborted(r.Context(), count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAborted(recent))
}

func parseKind(raw string) (transaction.Kind, error) {
	switch k := transaction.Kind(raw); k {
	case transaction.KindPlaceOrder, transaction.KindReturnOrder:
		return k, nil
	}
	return "", domainErrors.NewValidationError("kind", "must be PlaceOrder or ReturnOrder")
}
