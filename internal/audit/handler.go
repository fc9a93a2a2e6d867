package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/opsdesk/storeops/internal/transport"
)

type ServiceAPI interface {
	ByEntity(ctx context.Context, entityType, entityID string, page Page) (*HistoryPage, error)
	ByActor(ctx context.Context, actorID int64, page Page) (*HistoryPage, error)
	ByAction(ctx context.Context, action string, page Page) (*HistoryPage, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetHistory serves the change-history view. Exactly one filter is
// accepted: entity_type+entity_id, actor_id, or action.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(q.Get("page"), q.Get("per_page"))

	entityType := q.Get("entity_type")
	entityID := q.Get("entity_id")
	actorID := q.Get("actor_id")
	action := q.Get("action")

	var (
		result *HistoryPage
		err    error
	)

	switch {
	case entityType != "" && entityID != "":
		result, err = h.Service.ByEntity(r.Context(), entityType, entityID, page)
	case actorID != "":
		var id int64
		id, err = strconv.ParseInt(actorID, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid actor_id")
			return
		}
		result, err = h.Service.ByActor(r.Context(), id, page)
	case action != "":
		result, err = h.Service.ByAction(r.Context(), action, page)
	default:
		h.WriteError(w, http.StatusBadRequest, "one of entity_type+entity_id, actor_id or action is required")
		return
	}

	if err != nil {
		h.Logger.Error("GetHistory: query failed", "error", err)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func pageFromQuery(pageStr, perPageStr string) Page {
	page := Page{}
	if v, err := strconv.Atoi(pageStr); err == nil {
		page.Page = v
	}
	if v, err := strconv.Atoi(perPageStr); err == nil {
		page.PerPage = v
	}
	return page.Normalize()
}
