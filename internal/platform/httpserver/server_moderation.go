package httpserver

import (
	"net/http"

	votehttp "pollwarden/contexts/polling/vote-engine/transport/http"
	"pollwarden/internal/platform/admission"
)

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	if _, ok := requireOperator(w, r); !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.votes.Handler.ListFlagsHandler(
		r.Context(),
		query.Get("status"),
		query.Get("limit"),
		query.Get("offset"),
	)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewFlag(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassModerate) {
		return
	}
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}
	var req votehttp.ReviewFlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.votes.Handler.ReviewFlagHandler(r.Context(), r.PathValue("flag_id"), operatorID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassModerate) {
		return
	}
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}
	var req votehttp.ApplyActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.votes.Handler.ApplyActionHandler(r.Context(), r.PathValue("vote_id"), operatorID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBulkAction answers 200 whenever the batch itself was accepted; item
// failures are reported per vote in the body.
func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassModerate) {
		return
	}
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}
	var req votehttp.BulkActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.votes.Handler.BulkActionHandler(r.Context(), operatorID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListModerationActions(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	if _, ok := requireOperator(w, r); !ok {
		return
	}
	resp, err := s.votes.Handler.ListModerationActionsHandler(r.Context(), r.PathValue("vote_id"))
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
