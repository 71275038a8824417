package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	proposalengine "safetynet/contexts/governance/proposal-engine"
	governancehttp "safetynet/contexts/governance/proposal-engine/transport/http"
)

func newTestServer() (*Server, proposalengine.Module) {
	module := proposalengine.NewInMemoryModule(nil, nil, nil)
	return New(module, nil, ""), module
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return out
}

func TestGovernanceProposalLifecycleOverHTTP(t *testing.T) {
	server, module := newTestServer()
	handler := server.Handler()
	module.Store.SetMember("member-a", true, nil)
	module.Store.SetMember("member-b", true, nil)

	created := doJSON(t, handler, http.MethodPost, "/api/governance/v1/proposals", "member-author",
		`{"title":"Raise annual dues","description":"From 20 to 25.","category":"policy","changes":{"dues_amount":25}}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d (%s)", created.Code, created.Body.String())
	}
	proposal := decodeBody[governancehttp.ProposalResponse](t, created)
	if proposal.State != "draft" || proposal.ProposalID == "" {
		t.Fatalf("unexpected draft response: %+v", proposal)
	}

	base := "/api/governance/v1/proposals/" + proposal.ProposalID

	activated := doJSON(t, handler, http.MethodPost, base+"/activate", "member-author",
		`{"quorum_fraction":0.5,"voting_days":7}`)
	if activated.Code != http.StatusOK {
		t.Fatalf("activate: want 200, got %d (%s)", activated.Code, activated.Body.String())
	}
	active := decodeBody[governancehttp.ProposalResponse](t, activated)
	if active.State != "active" || active.VotingEndsAt == "" {
		t.Fatalf("unexpected activation response: %+v", active)
	}

	voted := doJSON(t, handler, http.MethodPost, base+"/votes", "member-a",
		`{"choice":"for","rationale":"overdue"}`)
	if voted.Code != http.StatusCreated {
		t.Fatalf("vote: want 201, got %d (%s)", voted.Code, voted.Body.String())
	}
	vote := decodeBody[governancehttp.VoteResponse](t, voted)
	if vote.Choice != "for" || vote.Weight != 1 {
		t.Fatalf("unexpected vote response: %+v", vote)
	}
	// One of two baseline voters meets the 0.5 quorum; the vote response
	// reports the finalization its own trigger observed.
	if !vote.Finalized || vote.Outcome != "passed" {
		t.Fatalf("expected quorum finalization on the deciding vote: %+v", vote)
	}

	status := doJSON(t, handler, http.MethodGet, base, "", "")
	if status.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", status.Code)
	}
	view := decodeBody[governancehttp.ProposalStatusResponse](t, status)
	if view.Proposal.State != "passed" || view.Tally.ForPower != 1 || view.VoteCount != 1 {
		t.Fatalf("unexpected status view: %+v", view)
	}
	if view.VotingOpen {
		t.Fatalf("terminal proposal must report voting closed")
	}

	list := doJSON(t, handler, http.MethodGet, "/api/governance/v1/proposals?state=passed", "", "")
	if list.Code != http.StatusOK {
		t.Fatalf("list: want 200, got %d", list.Code)
	}
	items := decodeBody[governancehttp.ProposalListResponse](t, list)
	if len(items.Items) != 1 || items.Items[0].ProposalID != proposal.ProposalID {
		t.Fatalf("unexpected list response: %+v", items)
	}
}

func TestGovernanceErrorMapping(t *testing.T) {
	server, module := newTestServer()
	handler := server.Handler()
	module.Store.SetMember("member-a", true, nil)
	module.Store.SetMember("member-b", true, nil)
	module.Store.SetMember("member-c", true, nil)

	// Identity header is mandatory on writes.
	missing := doJSON(t, handler, http.MethodPost, "/api/governance/v1/proposals", "",
		`{"title":"x","category":"policy"}`)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("missing user: want 401, got %d", missing.Code)
	}
	errBody := decodeBody[governancehttp.ErrorResponse](t, missing)
	if errBody.Code != "missing_user" {
		t.Fatalf("unexpected error code %q", errBody.Code)
	}

	notFound := doJSON(t, handler, http.MethodGet, "/api/governance/v1/proposals/nope", "", "")
	if notFound.Code != http.StatusNotFound {
		t.Fatalf("unknown proposal: want 404, got %d", notFound.Code)
	}

	created := doJSON(t, handler, http.MethodPost, "/api/governance/v1/proposals", "member-author",
		`{"title":"Raise annual dues","category":"policy"}`)
	proposal := decodeBody[governancehttp.ProposalResponse](t, created)
	base := "/api/governance/v1/proposals/" + proposal.ProposalID

	// Draft proposals reject votes before eligibility is even considered.
	draftVote := doJSON(t, handler, http.MethodPost, base+"/votes", "member-a", `{"choice":"for"}`)
	if draftVote.Code != http.StatusConflict {
		t.Fatalf("vote on draft: want 409, got %d", draftVote.Code)
	}
	if code := decodeBody[governancehttp.ErrorResponse](t, draftVote).Code; code != "not_votable" {
		t.Fatalf("unexpected error code %q", code)
	}

	badQuorum := doJSON(t, handler, http.MethodPost, base+"/activate", "member-author",
		`{"quorum_fraction":1.5,"voting_days":7}`)
	if badQuorum.Code != http.StatusBadRequest {
		t.Fatalf("invalid quorum: want 400, got %d", badQuorum.Code)
	}

	if resp := doJSON(t, handler, http.MethodPost, base+"/activate", "member-author",
		`{"quorum_fraction":0.9,"voting_days":7}`); resp.Code != http.StatusOK {
		t.Fatalf("activate: want 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	stranger := doJSON(t, handler, http.MethodPost, base+"/votes", "stranger", `{"choice":"for"}`)
	if stranger.Code != http.StatusForbidden {
		t.Fatalf("non-member vote: want 403, got %d", stranger.Code)
	}
	if code := decodeBody[governancehttp.ErrorResponse](t, stranger).Code; code != "not_eligible" {
		t.Fatalf("unexpected error code %q", code)
	}

	if resp := doJSON(t, handler, http.MethodPost, base+"/votes", "member-a", `{"choice":"for"}`); resp.Code != http.StatusCreated {
		t.Fatalf("first vote: want 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	repeat := doJSON(t, handler, http.MethodPost, base+"/votes", "member-a", `{"choice":"against"}`)
	if repeat.Code != http.StatusConflict {
		t.Fatalf("repeat vote: want 409, got %d", repeat.Code)
	}
	if code := decodeBody[governancehttp.ErrorResponse](t, repeat).Code; code != "already_voted" {
		t.Fatalf("unexpected error code %q", code)
	}

	badChoice := doJSON(t, handler, http.MethodPost, base+"/votes", "member-b", `{"choice":"maybe"}`)
	if badChoice.Code != http.StatusBadRequest {
		t.Fatalf("invalid choice: want 400, got %d", badChoice.Code)
	}

	badJSON := doJSON(t, handler, http.MethodPost, base+"/votes", "member-b", `{"choice":`)
	if badJSON.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: want 400, got %d", badJSON.Code)
	}
	if code := decodeBody[governancehttp.ErrorResponse](t, badJSON).Code; code != "invalid_json" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestGovernanceExplicitFinalizeEndpoint(t *testing.T) {
	server, module := newTestServer()
	handler := server.Handler()
	module.Store.SetMember("member-a", true, nil)
	module.Store.SetMember("member-b", true, nil)
	module.Store.SetMember("member-c", true, nil)

	created := doJSON(t, handler, http.MethodPost, "/api/governance/v1/proposals", "member-author",
		`{"title":"Raise annual dues","category":"policy"}`)
	proposal := decodeBody[governancehttp.ProposalResponse](t, created)
	base := "/api/governance/v1/proposals/" + proposal.ProposalID

	doJSON(t, handler, http.MethodPost, base+"/activate", "member-author",
		`{"quorum_fraction":0.9,"voting_days":7}`)
	doJSON(t, handler, http.MethodPost, base+"/votes", "member-a", `{"choice":"for"}`)

	// 1 of 3 cast at quorum 0.9: the proposal stays open and the endpoint
	// says so without erroring.
	open := doJSON(t, handler, http.MethodPost, base+"/finalize", "member-author", "")
	if open.Code != http.StatusOK {
		t.Fatalf("finalize open: want 200, got %d (%s)", open.Code, open.Body.String())
	}
	openResp := decodeBody[governancehttp.FinalizeResponse](t, open)
	if openResp.Finalized || openResp.State != "active" {
		t.Fatalf("open proposal must stay active: %+v", openResp)
	}

	doJSON(t, handler, http.MethodPost, base+"/votes", "member-b", `{"choice":"for"}`)
	doJSON(t, handler, http.MethodPost, base+"/votes", "member-c", `{"choice":"against"}`)

	done := doJSON(t, handler, http.MethodPost, base+"/finalize", "member-author", "")
	if done.Code != http.StatusOK {
		t.Fatalf("finalize: want 200, got %d", done.Code)
	}
	doneResp := decodeBody[governancehttp.FinalizeResponse](t, done)
	if !doneResp.Finalized || doneResp.State != "passed" {
		t.Fatalf("full turnout 2 for vs 1 against must pass: %+v", doneResp)
	}
	if doneResp.Tally.ForPower != 2 || doneResp.Tally.AgainstPower != 1 {
		t.Fatalf("unexpected tally: %+v", doneResp.Tally)
	}
}
