package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/enrich"
	"github.com/sells-group/investor-cli/internal/finder"
	"github.com/sells-group/investor-cli/internal/upload"
)

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listFirms(w http.ResponseWriter, r *http.Request) {
	firms, err := s.svc.Store.ListFirms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, firms)
}

func (s *server) uploadFirms(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	rows, errs := upload.FirmsFromJSON(r.Context(), body)
	res, err := upload.Import(r.Context(), s.svc.Store, rows, errs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) getFirm(w http.ResponseWriter, r *http.Request) {
	id, err := firmID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	firm, err := s.svc.Store.GetFirm(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, firm)
}

func (s *server) deleteFirm(w http.ResponseWriter, r *http.Request) {
	id, err := firmID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.svc.Store.DeleteFirm(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) findInvestors(w http.ResponseWriter, r *http.Request) {
	if s.svc.Finder == nil {
		unavailable(w, "generation service")
		return
	}
	var q finder.Query
	if err := decodeBody(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Finder.Find(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) enrichContact(w http.ResponseWriter, r *http.Request) {
	if s.svc.Contacts == nil {
		unavailable(w, "generation service")
		return
	}
	var req enrich.ContactRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	contacts, err := s.svc.Contacts.Enrich(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *server) findContacts(w http.ResponseWriter, r *http.Request) {
	if s.svc.ContactFinder == nil {
		unavailable(w, "generation service")
		return
	}
	id, err := firmID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contacts, err := s.svc.ContactFinder.Find(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *server) enrichFirm(w http.ResponseWriter, r *http.Request) {
	if s.svc.Firms == nil {
		unavailable(w, "generation service")
		return
	}
	var req enrich.FirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Firms.Enrich(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// firmID parses the {id} path parameter, which must be a positive integer.
func firmID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Input("id must be a positive integer")
	}
	return id, nil
}
