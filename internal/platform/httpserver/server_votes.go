package httpserver

import (
	"net/http"

	identityapp "pollwarden/contexts/identity-access/identity-resolver/application"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	votehttp "pollwarden/contexts/polling/vote-engine/transport/http"
	"pollwarden/internal/platform/admission"
)

func viewerFromRequest(r *http.Request) entities.Viewer {
	return entities.Viewer{
		UserID:   headerValue(r, "X-User-Id"),
		Operator: headerValue(r, "X-Operator-Id") != "",
	}
}

func (s *Server) handleCreateVote(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRegister) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req votehttp.CreateVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.votes.Handler.CreateVoteHandler(r.Context(), userID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassWrite) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req votehttp.OptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.votes.Handler.AddOptionHandler(r.Context(), r.PathValue("vote_id"), userID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassWrite) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.votes.Handler.RemoveOptionHandler(r.Context(), r.PathValue("vote_id"), r.PathValue("option_id"), userID); err != nil {
		writeVoteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishVote(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassWrite) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.votes.Handler.PublishHandler(r.Context(), r.PathValue("vote_id"), userID)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseVote(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassWrite) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.votes.Handler.CloseHandler(r.Context(), r.PathValue("vote_id"), userID)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetVote lets owners read their drafts, which have no slug yet.
func (s *Server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	resp, err := s.votes.Handler.GetVoteHandler(r.Context(), r.PathValue("vote_id"), viewerFromRequest(r))
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVoteBySlug(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	resp, err := s.votes.Handler.GetVoteBySlugHandler(r.Context(), r.PathValue("slug"), viewerFromRequest(r))
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmitResponse counts the submission against the authenticated user
// when present, otherwise against a per-vote token of the client address.
func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassSubmit) {
		return
	}
	voteID := r.PathValue("vote_id")
	var req votehttp.SubmitResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	participant, err := s.identity.Resolver.Resolve(identityapp.Request{
		VoteID:   voteID,
		UserID:   headerValue(r, "X-User-Id"),
		RemoteIP: s.clientIP(r),
	})
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	identity := entities.Identity{
		Kind:  entities.IdentityKind(participant.Kind),
		Value: participant.Value,
	}

	resp, err := s.votes.Handler.SubmitHandler(r.Context(), voteID, identity, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	viewer := viewerFromRequest(r)
	if viewer.UserID == "" && !viewer.Operator {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id or X-Operator-Id header is required")
		return
	}
	resp, err := s.votes.Handler.ResultsHandler(r.Context(), r.PathValue("vote_id"), viewer)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResultSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassRead) {
		return
	}
	viewer := viewerFromRequest(r)
	if viewer.UserID == "" && !viewer.Operator {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id or X-Operator-Id header is required")
		return
	}
	resp, err := s.votes.Handler.SnapshotHandler(r.Context(), r.PathValue("vote_id"), viewer)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlagVote(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, admission.ClassFlag) {
		return
	}
	var req votehttp.FlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	voteID := r.PathValue("vote_id")
	reporter, err := s.identity.Resolver.Resolve(identityapp.Request{
		VoteID:   voteID,
		UserID:   headerValue(r, "X-User-Id"),
		RemoteIP: s.clientIP(r),
	})
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	reporterID := reporter.Value
	if reporter.Anonymous() {
		reporterID = reporter.String()
	}
	resp, err := s.votes.Handler.FlagHandler(r.Context(), voteID, reporterID, req)
	if err != nil {
		writeVoteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
