package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/orders"
)

// orderQuery is the shared request body of the order routes.
type orderQuery struct {
	AccountID      string `json:"accountid"`
	Params         string `json:"params"`
	FilterField    string `json:"filterField"`
	FilterValue    string `json:"filterValue"`
	FilterFunction string `json:"filterFunction"`
}

func (q orderQuery) filter() commerce.Filter {
	return commerce.Filter{
		Field:    q.FilterField,
		Value:    q.FilterValue,
		Function: q.FilterFunction,
	}
}

// decodeOrderQuery parses the body and rejects unknown filter functions
// before anything is fetched upstream.
func decodeOrderQuery(w http.ResponseWriter, r *http.Request) (orderQuery, bool) {
	var q orderQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, errors.CodeProcessingError, "invalid request body")
		return q, false
	}
	if _, err := q.filter().Compile(); err != nil {
		writeError(w, http.StatusBadRequest, errors.CodeProcessingError, err.Error())
		return q, false
	}
	return q, true
}

func (s *Server) fetchFiltered(r *http.Request, q orderQuery) ([]commerce.Order, error) {
	all, err := s.commerce.GetAllOrders(r.Context(), q.AccountID, q.Params)
	if err != nil {
		return nil, err
	}
	return commerce.FilterOrders(all, q.filter())
}

func (s *Server) handleGetFilteredOrders(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeOrderQuery(w, r)
	if !ok {
		return
	}

	filtered, err := s.fetchFiltered(r, q)
	if err != nil {
		s.logger.Error("fetching orders failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.CodeProcessingError, "failed to fetch orders")
		return
	}
	if filtered == nil {
		filtered = []commerce.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": filtered})
}

// handleUpdateFilteredOrders fetches and filters the orders, resolves every
// item against the product catalog, and starts an asynchronous update job.
// The response carries only the job handle; progress is read from the job
// route.
func (s *Server) handleUpdateFilteredOrders(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeOrderQuery(w, r)
	if !ok {
		return
	}

	filtered, err := s.fetchFiltered(r, q)
	if err != nil {
		s.logger.Error("starting order update failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.CodeProcessingError, "failed to start order update")
		return
	}

	var products []commerce.Product
	for _, name := range orders.UniqueProductNames(filtered) {
		batch, err := s.commerce.GetProducts(r.Context(), q.AccountID, name)
		if err != nil {
			s.logger.Error("product lookup for %q failed: %v", name, err)
			writeError(w, http.StatusInternalServerError, errors.CodeProcessingError, "failed to look up products")
			return
		}
		products = append(products, batch...)
	}

	jobID := s.jobs.CreateJob(orders.Resolve(filtered, products))
	job, _ := s.jobs.GetJob(jobID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobId":    jobID,
		"accepted": job.Stats.Total,
		"rejected": len(job.Invalid),
		"monitor":  "/api/jobs/" + jobID,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.CodeJobNotFound, "job not found")
		return
	}

	body := map[string]interface{}{
		"status":  job.Status,
		"stats":   job.Stats,
		"invalid": job.Invalid,
	}
	if job.Status == orders.StatusCompleted {
		body["results"] = job.Results
		body["errors"] = job.Errors
	}
	writeJSON(w, http.StatusOK, body)
}
