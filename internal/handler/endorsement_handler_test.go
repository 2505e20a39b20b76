package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nesafrica/endorse/internal/endorsement"
	"github.com/nesafrica/endorse/internal/model"
)

// mockEndorsementService はEndorsementServiceInterfaceのモック実装。
type mockEndorsementService struct {
	submitFunc   func(ctx context.Context, in endorsement.SubmitInput) (*model.Endorsement, error)
	getFunc      func(ctx context.Context, email string) (*model.Endorsement, error)
	verifyFunc   func(ctx context.Context, email, token string) (*model.Endorsement, error)
	resendFunc   func(ctx context.Context, email string) error
	showcaseFunc func(ctx context.Context, q endorsement.ShowcaseQuery) (*endorsement.ShowcasePage, error)
}

func (m *mockEndorsementService) Submit(ctx context.Context, in endorsement.SubmitInput) (*model.Endorsement, error) {
	return m.submitFunc(ctx, in)
}

func (m *mockEndorsementService) GetByEmail(ctx context.Context, email string) (*model.Endorsement, error) {
	return m.getFunc(ctx, email)
}

func (m *mockEndorsementService) VerifyEmail(ctx context.Context, email, token string) (*model.Endorsement, error) {
	return m.verifyFunc(ctx, email, token)
}

func (m *mockEndorsementService) ResendVerification(ctx context.Context, email string) error {
	return m.resendFunc(ctx, email)
}

func (m *mockEndorsementService) Showcase(ctx context.Context, q endorsement.ShowcaseQuery) (*endorsement.ShowcasePage, error) {
	return m.showcaseFunc(ctx, q)
}

var _ EndorsementServiceInterface = (*mockEndorsementService)(nil)

func sampleEndorsement() *model.Endorsement {
	return &model.Endorsement{
		ID:               "e-1",
		Email:            "contact@example.org",
		OrganizationName: "Pan-African Literacy Trust",
		ContactPerson:    "Amina Diallo",
		Country:          "Senegal",
		Category:         "education_ngo",
		EndorsementType:  model.EndorsementTypeFree,
		Statement:        "We endorse this initiative.",
		Status:           model.StatusPendingVerification,
		CreatedAt:        time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func validSubmitBody() string {
	return `{
		"email": "contact@example.org",
		"organization_name": "Pan-African Literacy Trust",
		"contact_person": "Amina Diallo",
		"country": "Senegal",
		"category": "education_ngo",
		"statement": "We endorse this initiative.",
		"consent_to_publish": true,
		"authorized_to_submit": true,
		"digital_signature": "Amina Diallo"
	}`
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

func TestSubmitHandler_Returns201WithEndorsement(t *testing.T) {
	svc := &mockEndorsementService{
		submitFunc: func(_ context.Context, in endorsement.SubmitInput) (*model.Endorsement, error) {
			if in.Email != "contact@example.org" {
				t.Errorf("unexpected email passed to service: %s", in.Email)
			}
			return sampleEndorsement(), nil
		},
	}
	h := NewEndorsementHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/endorsements/submit", strings.NewReader(validSubmitBody()))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	e, ok := body["endorsement"].(map[string]any)
	if !ok {
		t.Fatal("expected an endorsement object in the response")
	}
	if e["status"] != "pending_verification" {
		t.Errorf("status = %v, want pending_verification", e["status"])
	}
	if e["id"] != "e-1" {
		t.Errorf("id = %v, want e-1", e["id"])
	}
}

func TestSubmitHandler_InvalidJSONReturns400(t *testing.T) {
	serviceCalled := false
	svc := &mockEndorsementService{
		submitFunc: func(_ context.Context, _ endorsement.SubmitInput) (*model.Endorsement, error) {
			serviceCalled = true
			return nil, nil
		},
	}
	h := NewEndorsementHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/endorsements/submit", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if serviceCalled {
		t.Error("service should not be called for malformed JSON")
	}
}

func TestSubmitHandler_MissingRequiredFieldReturns400(t *testing.T) {
	serviceCalled := false
	svc := &mockEndorsementService{
		submitFunc: func(_ context.Context, _ endorsement.SubmitInput) (*model.Endorsement, error) {
			serviceCalled = true
			return nil, nil
		},
	}
	h := NewEndorsementHandler(svc)

	body := `{"email": "contact@example.org"}`
	req := httptest.NewRequest(http.MethodPost, "/api/endorsements/submit", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if serviceCalled {
		t.Error("service should not be called when validation fails")
	}

	got := decodeBody(t, resp)
	if got["success"] != false {
		t.Errorf("success = %v, want false", got["success"])
	}
	msg, _ := got["message"].(string)
	if !strings.Contains(msg, "required") {
		t.Errorf("message %q should name the missing field", msg)
	}
}

func TestSubmitHandler_DuplicateEmailReturns409WithExistingReference(t *testing.T) {
	svc := &mockEndorsementService{
		submitFunc: func(_ context.Context, _ endorsement.SubmitInput) (*model.Endorsement, error) {
			return nil, model.NewEmailExistsError("existing-id", model.StatusPendingReview)
		},
	}
	h := NewEndorsementHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/endorsements/submit", strings.NewReader(validSubmitBody()))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	existing, ok := body["endorsement"].(map[string]any)
	if !ok {
		t.Fatal("409 response should carry the existing endorsement reference")
	}
	if existing["id"] != "existing-id" {
		t.Errorf("existing id = %v, want existing-id", existing["id"])
	}
	if existing["status"] != "pending_review" {
		t.Errorf("existing status = %v, want pending_review", existing["status"])
	}
}

func TestGetSubmission_RequiresEmailParameter(t *testing.T) {
	h := NewEndorsementHandler(&mockEndorsementService{})

	req := httptest.NewRequest(http.MethodGet, "/api/endorsements/submit", nil)
	w := httptest.NewRecorder()

	h.GetSubmission(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetSubmission_UnknownEmailReturns404(t *testing.T) {
	svc := &mockEndorsementService{
		getFunc: func(_ context.Context, _ string) (*model.Endorsement, error) {
			return nil, model.NewNotFoundError()
		},
	}
	h := NewEndorsementHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/endorsements/submit?email=nobody@example.org", nil)
	w := httptest.NewRecorder()

	h.GetSubmission(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestVerifyEmailHandler_POSTAndGETShareBehavior(t *testing.T) {
	verified := sampleEndorsement()
	verified.Status = model.StatusPendingReview
	verified.Verified = true

	svc := &mockEndorsementService{
		verifyFunc: func(_ context.Context, email, token string) (*model.Endorsement, error) {
			if token != "valid-token" {
				return nil, model.NewInvalidTokenError()
			}
			return verified, nil
		},
	}
	h := NewEndorsementHandler(svc)

	t.Run("POST with valid token", func(t *testing.T) {
		body := `{"email": "contact@example.org", "verification_token": "valid-token"}`
		req := httptest.NewRequest(http.MethodPost, "/api/endorsements/verify-email", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.VerifyEmail(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		got := decodeBody(t, resp)
		e := got["endorsement"].(map[string]any)
		if e["status"] != "pending_review" || e["verified"] != true {
			t.Errorf("unexpected endorsement payload: %v", e)
		}
	})

	t.Run("GET link with valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/endorsements/verify-email?email=contact@example.org&token=valid-token", nil)
		w := httptest.NewRecorder()

		h.VerifyEmailLink(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
	})

	t.Run("invalid token returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/endorsements/verify-email?email=contact@example.org&token=bad", nil)
		w := httptest.NewRecorder()

		h.VerifyEmailLink(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		got := decodeBody(t, resp)
		if got["message"] != "Invalid or expired verification token" {
			t.Errorf("message = %v", got["message"])
		}
	})
}

func TestResendVerificationHandler(t *testing.T) {
	svc := &mockEndorsementService{
		resendFunc: func(_ context.Context, email string) error {
			if email == "verified@example.org" {
				return model.NewAlreadyVerifiedError()
			}
			return nil
		},
	}
	h := NewEndorsementHandler(svc)

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/endorsements/resend-verification", strings.NewReader(`{"email": "contact@example.org"}`))
		w := httptest.NewRecorder()

		h.ResendVerification(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		got := decodeBody(t, resp)
		if got["message"] != "Verification email sent" {
			t.Errorf("message = %v", got["message"])
		}
	})

	t.Run("missing email", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/endorsements/resend-verification", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		h.ResendVerification(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("already verified", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/endorsements/resend-verification", strings.NewReader(`{"email": "verified@example.org"}`))
		w := httptest.NewRecorder()

		h.ResendVerification(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
		}
	})
}

func TestShowcaseHandler_ParsesFiltersAndShapesResponse(t *testing.T) {
	approvedAt := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	item := sampleEndorsement()
	item.Status = model.StatusApproved
	item.Verified = true
	item.Featured = true
	item.ApprovedAt = &approvedAt

	var gotQuery endorsement.ShowcaseQuery
	svc := &mockEndorsementService{
		showcaseFunc: func(_ context.Context, q endorsement.ShowcaseQuery) (*endorsement.ShowcasePage, error) {
			gotQuery = q
			return &endorsement.ShowcasePage{
				Items:      []*model.Endorsement{item},
				Total:      25,
				Limit:      q.Limit,
				Offset:     q.Offset,
				HasMore:    true,
				Categories: []string{"education_ngo"},
				Countries:  []string{"Senegal"},
			}, nil
		},
	}
	h := NewEndorsementHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/endorsements/showcase?category=education_ngo&featured=true&limit=10&offset=20", nil)
	w := httptest.NewRecorder()

	h.Showcase(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if gotQuery.Category != "education_ngo" || gotQuery.Featured == nil || !*gotQuery.Featured {
		t.Errorf("unexpected query passed to service: %+v", gotQuery)
	}
	if gotQuery.Limit != 10 || gotQuery.Offset != 20 {
		t.Errorf("limit/offset = %d/%d, want 10/20", gotQuery.Limit, gotQuery.Offset)
	}

	body := decodeBody(t, resp)
	pagination := body["pagination"].(map[string]any)
	if pagination["total"] != float64(25) || pagination["has_more"] != true {
		t.Errorf("unexpected pagination: %v", pagination)
	}

	items := body["endorsements"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 endorsement, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if _, leaked := first["email"]; leaked {
		t.Error("showcase projection must not expose email addresses")
	}
	if first["organization_name"] != "Pan-African Literacy Trust" {
		t.Errorf("organization_name = %v", first["organization_name"])
	}
}

func TestShowcaseHandler_InvalidQueryParameters(t *testing.T) {
	h := NewEndorsementHandler(&mockEndorsementService{})

	for _, url := range []string{
		"/api/endorsements/showcase?featured=banana",
		"/api/endorsements/showcase?limit=ten",
		"/api/endorsements/showcase?offset=zero",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()

		h.Showcase(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", url, w.Result().StatusCode, http.StatusBadRequest)
		}
	}
}
