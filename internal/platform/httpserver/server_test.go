package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	identityresolver "pollwarden/contexts/identity-access/identity-resolver"
	voteengine "pollwarden/contexts/polling/vote-engine"
	votehttp "pollwarden/contexts/polling/vote-engine/transport/http"
	"pollwarden/internal/platform/admission"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer() *Server {
	return newTestServerWith(nil, nil)
}

func newTestServerWith(overrides map[admission.EndpointClass]admission.Policy, trusted []netip.Prefix) *Server {
	logger := quietLogger()
	return New(
		voteengine.NewInMemoryModule(nil, logger),
		identityresolver.NewModule("test-salt", logger),
		admission.NewController(admission.NewMemoryLimiter(), overrides, nil, logger),
		logger,
		Options{Addr: ":0", TrustedProxies: trusted},
	)
}

func doJSON(server *Server, method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.5:40000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		if name == "RemoteAddr" {
			req.RemoteAddr = value
			continue
		}
		req.Header.Set(name, value)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

// publishedVote creates and publishes a two-option vote owned by owner-1.
func publishedVote(t *testing.T, server *Server) votehttp.VoteResponse {
	t.Helper()
	rr := doJSON(server, http.MethodPost, "/v1/votes", `{
		"title":"Best lunch spot",
		"options":[{"title":"Noodles"},{"title":"Tacos"}]
	}`, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var vote votehttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &vote); err != nil {
		t.Fatalf("decode vote: %v", err)
	}
	if len(vote.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(vote.Options))
	}

	rr = doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/publish", "", map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on publish, got %d body=%s", rr.Code, rr.Body.String())
	}
	var published votehttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &published); err != nil {
		t.Fatalf("decode published vote: %v", err)
	}
	if published.Slug == "" || published.Status != "active" {
		t.Fatalf("expected an active vote with a slug, got %+v", published)
	}
	vote.Slug = published.Slug
	vote.Status = published.Status
	return vote
}

func submitBody(vote votehttp.VoteResponse, first int, second int) string {
	payload, _ := json.Marshal(votehttp.SubmitResponseRequest{Values: map[string]int{
		vote.Options[0].OptionID: first,
		vote.Options[1].OptionID: second,
	}})
	return string(payload)
}

func TestHealth(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateVoteRequiresUser(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/v1/votes", `{"title":"x"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateVoteRejectsMalformedJSON(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/v1/votes", `{"title":`, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitThenDuplicateIsConflict(t *testing.T) {
	server := newTestServer()
	vote := publishedVote(t, server)

	rr := doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 2, -1), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var accepted votehttp.SubmitResponseResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if accepted.Status != "accepted" || accepted.IdentityKind != "anonymous" {
		t.Fatalf("unexpected submit response %+v", accepted)
	}

	rr = doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 1, 1), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var errResp votehttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "duplicate_identity" {
		t.Fatalf("expected duplicate_identity, got %q", errResp.Code)
	}

	rr = doJSON(server, http.MethodGet, "/v1/votes/"+vote.VoteID+"/results", "", map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var results votehttp.ResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.ResponseCount != 1 {
		t.Fatalf("expected one counted response, got %d", results.ResponseCount)
	}
	if got := results.Results[vote.Options[0].OptionID].TotalScore; got != 2 {
		t.Fatalf("expected total 2 for first option, got %d", got)
	}
}

func TestUserAndAnonymousSubmissionsAreSeparate(t *testing.T) {
	server := newTestServer()
	vote := publishedVote(t, server)

	rr := doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 0, 0), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 anonymous, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 0, 0), map[string]string{"X-User-Id": "voter-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for user from same address, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	server := newTestServer()
	vote := publishedVote(t, server)

	rr := doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 5, 0), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out of range, got %d body=%s", rr.Code, rr.Body.String())
	}
	partial := `{"values":{"` + vote.Options[0].OptionID + `":1}}`
	rr = doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", partial, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for incomplete set, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodPost, "/v1/votes/"+vote.VoteID+"/responses", submitBody(vote, 1, 1), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected rejected attempts to leave the identity unused, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitToUnknownVoteIsNotFound(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/v1/votes/missing/responses", `{"values":{"a":1,"b":1}}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestResultsAccess(t *testing.T) {
	server := newTestServer()
	vote := publishedVote(t, server)
	path := "/v1/votes/" + vote.VoteID + "/results"

	if rr := doJSON(server, http.MethodGet, path, "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := doJSON(server, http.MethodGet, path, "", map[string]string{"X-User-Id": "someone-else"}); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := doJSON(server, http.MethodGet, path, "", map[string]string{"X-Operator-Id": "op-1"}); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitIsRateLimited(t *testing.T) {
	server := newTestServerWith(map[admission.EndpointClass]admission.Policy{
		admission.ClassSubmit: {Limit: 2, Window: time.Minute},
	}, nil)

	for i := 0; i < 2; i++ {
		rr := doJSON(server, http.MethodPost, "/v1/votes/missing/responses", `{"values":{}}`, nil)
		if rr.Code == http.StatusTooManyRequests {
			t.Fatalf("expected attempt %d to be admitted", i+1)
		}
	}
	rr := doJSON(server, http.MethodPost, "/v1/votes/missing/responses", `{"values":{}}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	rr = doJSON(server, http.MethodGet, "/v1/votes/by-slug/unknown", "", nil)
	if rr.Code == http.StatusTooManyRequests {
		t.Fatalf("expected read budget to be independent of submit budget")
	}
	rr = doJSON(server, http.MethodPost, "/v1/votes/missing/responses", `{"values":{}}`, map[string]string{"RemoteAddr": "198.51.100.20:1000"})
	if rr.Code == http.StatusTooManyRequests {
		t.Fatalf("expected a different address to have its own budget")
	}
}

type failingLimiter struct{}

func (failingLimiter) Hit(context.Context, string, time.Duration, time.Time) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("dial tcp: connection refused")
}

func TestLimiterOutageFailsClosed(t *testing.T) {
	logger := quietLogger()
	server := New(
		voteengine.NewInMemoryModule(nil, logger),
		identityresolver.NewModule("test-salt", logger),
		admission.NewController(failingLimiter{}, nil, nil, logger),
		logger,
		Options{Addr: ":0"},
	)
	rr := doJSON(server, http.MethodGet, "/v1/votes/by-slug/anything", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestClientIPHonoursOnlyTrustedProxies(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	server := newTestServerWith(nil, trusted)

	cases := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{name: "direct peer", remote: "203.0.113.9:5000", want: "203.0.113.9"},
		{name: "spoofed header from untrusted peer", remote: "203.0.113.9:5000", forwarded: "198.51.100.1", want: "203.0.113.9"},
		{name: "trusted proxy", remote: "10.1.2.3:5000", forwarded: "198.51.100.1", want: "198.51.100.1"},
		{name: "chain of trusted proxies", remote: "10.1.2.3:5000", forwarded: "6.6.6.6, 198.51.100.1, 192.0.2.1", want: "198.51.100.1"},
		{name: "garbage hop", remote: "10.1.2.3:5000", forwarded: "not-an-ip", want: "10.1.2.3"},
		{name: "mapped peer", remote: "[::ffff:203.0.113.9]:5000", want: "203.0.113.9"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = tc.remote
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if got := server.clientIP(req); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected invalid prefix to fail")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.internal"}); err == nil {
		t.Fatalf("expected hostname to fail")
	}
}

func TestForwardedClientsBehindProxyVoteSeparately(t *testing.T) {
	trusted, _ := ParseTrustedProxies([]string{"10.0.0.0/8"})
	server := newTestServerWith(nil, trusted)
	vote := publishedVote(t, server)
	path := "/v1/votes/" + vote.VoteID + "/responses"

	first := doJSON(server, http.MethodPost, path, submitBody(vote, 1, 0), map[string]string{
		"RemoteAddr":      "10.0.0.2:3000",
		"X-Forwarded-For": "198.51.100.1",
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", first.Code, first.Body.String())
	}
	second := doJSON(server, http.MethodPost, path, submitBody(vote, 1, 0), map[string]string{
		"RemoteAddr":      "10.0.0.2:3000",
		"X-Forwarded-For": "198.51.100.2",
	})
	if second.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a second client, got %d body=%s", second.Code, second.Body.String())
	}

	spoofed := doJSON(server, http.MethodPost, path, submitBody(vote, 1, 0), map[string]string{
		"RemoteAddr":      "203.0.113.5:3000",
		"X-Forwarded-For": "198.51.100.3",
	})
	if spoofed.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", spoofed.Code, spoofed.Body.String())
	}
	spoofedAgain := doJSON(server, http.MethodPost, path, submitBody(vote, 1, 0), map[string]string{
		"RemoteAddr":      "203.0.113.5:3000",
		"X-Forwarded-For": "198.51.100.4",
	})
	if spoofedAgain.Code != http.StatusConflict {
		t.Fatalf("expected rotating a spoofed header to be a duplicate, got %d body=%s", spoofedAgain.Code, spoofedAgain.Body.String())
	}
}

func TestRetryAfterRoundsUp(t *testing.T) {
	if got := retryAfterSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := retryAfterSeconds(time.Millisecond); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestGetVoteByIDShowsDraftToOwnerOnly(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/v1/votes", `{
		"title":"Offsite venue",
		"options":[{"title":"Lake"},{"title":"City"}]
	}`, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var draft votehttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode vote: %v", err)
	}

	rr = doJSON(server, http.MethodGet, "/v1/votes/"+draft.VoteID, "", map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected owner to read draft, got %d body=%s", rr.Code, rr.Body.String())
	}
	var view votehttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status != "draft" || len(view.Options) != 2 {
		t.Fatalf("unexpected draft view %+v", view)
	}

	rr = doJSON(server, http.MethodGet, "/v1/votes/"+draft.VoteID, "", map[string]string{"X-User-Id": "user-2"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected draft hidden from others, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodGet, "/v1/votes/"+draft.VoteID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected draft hidden from anonymous callers, got %d body=%s", rr.Code, rr.Body.String())
	}
}
