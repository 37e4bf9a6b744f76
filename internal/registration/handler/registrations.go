package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/httputil"
	pkgstrings "registrar/pkg/platform/strings"
	"registrar/pkg/requestcontext"
)

// HandleSubmit enrolls one submitter in one course.
// The submission time is stamped from the server clock; any client value is ignored.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeJSON[models.RegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := idempotencyToken(r, req.IdempotencyToken)
	if err != nil {
		h.writeServiceError(ctx, w, "submit", err)
		return
	}
	req.IdempotencyToken = token
	req.SubmittedAt = requestcontext.Now(ctx)

	res, err := h.service.Submit(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "submit", err)
		return
	}
	writeResult(w, res)
}

// HandleListStatuses returns remaining capacity for every course, or only for
// the courses named in ?ids=a,b. Unknown ids are skipped.
func (h *Handler) HandleListStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses, err := h.service.ListStatuses(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list statuses", err)
		return
	}
	if ids := pkgstrings.SplitList(r.URL.Query()["ids"]); len(ids) > 0 {
		statuses = filterStatuses(statuses, ids)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"courses": statuses})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.service.Status(ctx, chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeServiceError(ctx, w, "course status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func filterStatuses(statuses []*models.CourseStatus, ids []string) []*models.CourseStatus {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]*models.CourseStatus, 0, len(ids))
	for _, st := range statuses {
		if _, ok := wanted[st.CourseID]; ok {
			out = append(out, st)
		}
	}
	return out
}
