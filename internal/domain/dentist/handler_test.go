package dentist

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dentalcrm/crm/internal/platform/auth"
)

func multipartBody(t *testing.T, fields map[string]string, logo []byte, logoType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if logo != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="clinicLogo"; filename="logo.png"`)
		h.Set("Content-Type", logoType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(logo)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func do(t *testing.T, h echo.HandlerFunc, req *http.Request, who *auth.Identity) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if who != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), who))
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec, body
}

func TestHandler_SaveProfile_Multipart(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	body, contentType := multipartBody(t, map[string]string{
		"fullName":   "Dr. Meera Shah",
		"phone":      "9123456780",
		"clinicName": "Bright Smiles",
	}, pngData, "image/png")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(t, h.SaveProfile, req, f.who)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if out["message"] != MsgSaved || out["access_token"] != "refreshed-token" {
		t.Errorf("unexpected result: %v", out)
	}
	d, ok := out["dentist"].(map[string]any)
	if !ok {
		t.Fatalf("expected dentist payload, got %v", out["dentist"])
	}
	logo, _ := d["clinicLogo"].(string)
	if !strings.HasSuffix(logo, ".png") || !strings.Contains(logo, "/cliniclogo/") {
		t.Errorf("unexpected logo url %q", logo)
	}
	if d["onboardingStatus"] != true {
		t.Error("expected onboarded dentist")
	}
}

func TestHandler_SaveProfile_MultipartRejectsWrongType(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	body, contentType := multipartBody(t, map[string]string{
		"fullName": "Dr. Meera Shah",
		"phone":    "9123456780",
	}, pngData, "image/gif")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(t, h.SaveProfile, req, f.who)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if out["error"] != MsgInvalid {
		t.Errorf("expected %q, got %v", MsgInvalid, out["error"])
	}
	if _, ok := out["access_token"]; ok {
		t.Error("expected no access token on failure")
	}
}

func TestHandler_SaveProfile_JSON(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fullName":"Dr. Ravi","phone":"9000000001"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, out := do(t, h.SaveProfile, req, f.who)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out["success"] != true {
		t.Errorf("unexpected result: %v", out)
	}
}

func TestHandler_SaveProfile_Unauthenticated(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fullName":"Dr. Ravi","phone":"9000000001"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, out := do(t, h.SaveProfile, req, nil)
	if rec.Code != http.StatusUnauthorized || out["error"] != MsgUnauthenticated {
		t.Errorf("expected 401 %q, got %d %v", MsgUnauthenticated, rec.Code, out["error"])
	}
	if v, ok := out["dentist"]; !ok || v != nil {
		t.Errorf("expected null dentist key, got %v", v)
	}
}

func TestHandler_GetProfile(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	rec, _ := do(t, h.GetProfile, httptest.NewRequest(http.MethodGet, "/", nil), f.who)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before onboarding, got %d", rec.Code)
	}

	if _, _, err := f.svc.SaveProfile(httptest.NewRequest(http.MethodGet, "/", nil).Context(), f.who, validInput()); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, out := do(t, h.GetProfile, httptest.NewRequest(http.MethodGet, "/", nil), f.who)
	if rec.Code != http.StatusOK || out["message"] != MsgFound {
		t.Errorf("expected 200 %q, got %d %v", MsgFound, rec.Code, out["message"])
	}
}
