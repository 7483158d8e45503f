package httpserver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	identityerrors "pollwarden/contexts/identity-access/identity-resolver/domain/errors"
	votehttpadapter "pollwarden/contexts/polling/vote-engine/adapters/http"
	voteerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	votehttp "pollwarden/contexts/polling/vote-engine/transport/http"
	"pollwarden/internal/platform/admission"
)

// ParseTrustedProxies accepts CIDR prefixes or single addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func (s *Server) isTrustedProxy(addr netip.Addr) bool {
	for _, prefix := range s.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP trusts X-Forwarded-For only when the direct peer is a trusted
// proxy, and then walks the chain from the right, skipping further trusted
// hops. Anything unparsable falls back to the peer address.
func (s *Server) clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	peer, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return host
	}
	peer = peer.Unmap()
	if !s.isTrustedProxy(peer) {
		return peer.String()
	}

	forwarded := r.Header.Values("X-Forwarded-For")
	var hops []string
	for _, value := range forwarded {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			return peer.String()
		}
		addr = addr.Unmap()
		if !s.isTrustedProxy(addr) {
			return addr.String()
		}
	}
	return peer.String()
}

// admissionSubject picks the narrowest known identity for budgeting.
func (s *Server) admissionSubject(r *http.Request) string {
	if operatorID := headerValue(r, "X-Operator-Id"); operatorID != "" {
		return "operator:" + operatorID
	}
	if userID := headerValue(r, "X-User-Id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + s.clientIP(r)
}

func (s *Server) admit(w http.ResponseWriter, r *http.Request, class admission.EndpointClass) bool {
	decision, err := s.admission.Allow(r.Context(), s.admissionSubject(r), class)
	if err != nil {
		writeAdmissionError(w, err)
		return false
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := headerValue(r, "X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func requireOperator(w http.ResponseWriter, r *http.Request) (string, bool) {
	operatorID := headerValue(r, "X-Operator-Id")
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "missing_operator", "X-Operator-Id header is required")
		return "", false
	}
	return operatorID, true
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votehttp.ErrorResponse{Code: code, Message: message})
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func writeAdmissionError(w http.ResponseWriter, err error) {
	retryAfter := time.Second
	var denied *admission.DeniedError
	if errors.As(err, &denied) {
		retryAfter = denied.RetryAfter
	}
	seconds := retryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	status, code, message := http.StatusTooManyRequests, "rate_limited", "too many requests"
	if errors.Is(err, admission.ErrLimiterUnavailable) || errors.Is(err, admission.ErrUnknownEndpointClass) {
		status, code, message = http.StatusServiceUnavailable, "admission_unavailable", "request admission is temporarily unavailable"
	}
	writeJSON(w, status, votehttp.ErrorResponse{Code: code, Message: message, RetryAfterSeconds: seconds})
}

func writeVoteDomainError(w http.ResponseWriter, err error) {
	code := votehttpadapter.ErrorCode(err)
	switch {
	case errors.Is(err, voteerrors.ErrInvalidInput),
		errors.Is(err, voteerrors.ErrInvalidModerationAction),
		errors.Is(err, voteerrors.ErrInvalidReviewDecision):
		writeError(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, voteerrors.ErrIncompleteResponseSet),
		errors.Is(err, voteerrors.ErrOutOfRangeScore):
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	case errors.Is(err, voteerrors.ErrVoteNotFound),
		errors.Is(err, voteerrors.ErrOptionNotFound),
		errors.Is(err, voteerrors.ErrFlagNotFound),
		errors.Is(err, voteerrors.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, code, err.Error())
	case errors.Is(err, voteerrors.ErrForbidden):
		writeError(w, http.StatusForbidden, code, err.Error())
	case errors.Is(err, voteerrors.ErrInvalidStateTransition),
		errors.Is(err, voteerrors.ErrNotEnoughOptions),
		errors.Is(err, voteerrors.ErrVoteNotAcceptingSubmissions),
		errors.Is(err, voteerrors.ErrDuplicateIdentity),
		errors.Is(err, voteerrors.ErrNotPending),
		errors.Is(err, voteerrors.ErrConflict):
		writeError(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, voteerrors.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, code, err.Error())
	case errors.Is(err, voteerrors.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, code, "storage temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identityerrors.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_client_address", err.Error())
	case errors.Is(err, identityerrors.ErrMissingVote):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
