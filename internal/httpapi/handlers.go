package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/logger"
	"github.com/roach88/sieve/internal/search"
)

// Handler serves the search endpoints.
type Handler struct {
	svc      *search.Service
	log      logger.Logger
	maxDepth int
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeValue(w, r, http.StatusOK, ir.IRObject{ir.O("status", ir.IRString("ok"))})
}

// entities lists every entity with its effective whitelist.
func (h *Handler) entities(w http.ResponseWriter, r *http.Request) {
	catalog := h.svc.Catalog()
	list := make(ir.IRArray, 0, len(catalog.Names()))
	for _, name := range catalog.Names() {
		model, _ := catalog.Entity(name)
		attrs := make(ir.IRArray, 0, len(model.SearchAttributes()))
		for _, a := range model.SearchAttributes() {
			attrs = append(attrs, ir.IRString(a))
		}
		list = append(list, ir.IRObject{
			ir.O("name", ir.IRString(name)),
			ir.O("searchable", attrs),
		})
	}
	writeValue(w, r, http.StatusOK, ir.IRObject{ir.O("data", list)})
}

func (h *Handler) searchBody(w http.ResponseWriter, r *http.Request) {
	v, err := decodeBody(r, h.maxDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := parseRequest(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.runSearch(w, r, req)
}

func (h *Handler) searchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseQuery(r, h.maxDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.runSearch(w, r, req)
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, req searchRequest) {
	entity := chi.URLParam(r, "entity")
	res, err := h.svc.Search(r.Context(), auth.FromContext(r.Context()), entity, req.Filter, req.Page)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rows := make(ir.IRArray, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = row
	}
	writeValue(w, r, http.StatusOK, ir.IRObject{
		ir.O("data", rows),
		ir.O("meta", ir.IRObject{
			ir.O("entity", ir.IRString(entity)),
			ir.O("hash", ir.IRString(res.Statement.Hash)),
			ir.O("count", ir.IRInt(len(rows))),
			ir.O("limit", ir.IRInt(res.Page.Limit)),
			ir.O("offset", ir.IRInt(res.Page.Offset)),
			ir.O("cached", ir.IRBool(res.Statement.Cached)),
		}),
	})
}

func (h *Handler) compile(w http.ResponseWriter, r *http.Request) {
	v, err := decodeBody(r, h.maxDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := parseRequest(v)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entity := chi.URLParam(r, "entity")
	stmt, err := h.svc.Compile(r.Context(), auth.FromContext(r.Context()), entity, req.Filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := statementValue(stmt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeValue(w, r, http.StatusOK, body)
}

// fail logs server errors; client errors are already logged by the
// service and the access log.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := errorResponse(err); status >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, r, err)
}

func statementValue(stmt search.Statement) (ir.IRObject, error) {
	args := make(ir.IRArray, len(stmt.Args))
	for i, a := range stmt.Args {
		v, err := ir.FromNative(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	warnings := make(ir.IRArray, len(stmt.Warnings))
	for i, msg := range stmt.Warnings {
		warnings[i] = ir.IRString(msg)
	}
	return ir.IRObject{
		ir.O("entity", ir.IRString(stmt.Entity)),
		ir.O("hash", ir.IRString(stmt.Hash)),
		ir.O("sql", ir.IRString(stmt.SQL)),
		ir.O("args", args),
		ir.O("warnings", warnings),
		ir.O("cached", ir.IRBool(stmt.Cached)),
	}, nil
}
