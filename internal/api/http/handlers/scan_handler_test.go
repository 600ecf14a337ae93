package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/expense-whatsapp/internal/api/http"
	"github.com/spec-kit/expense-whatsapp/internal/api/http/handlers"
	"github.com/spec-kit/expense-whatsapp/internal/domain"
	"github.com/spec-kit/expense-whatsapp/internal/extraction"
)

type stubExtractor struct {
	receipt *domain.ExtractedReceipt
	err     error
}

func (s *stubExtractor) FromImage(ctx context.Context, imageData []byte, mimeType string) (*domain.ExtractedReceipt, error) {
	return s.receipt, s.err
}

func (s *stubExtractor) FromURL(ctx context.Context, imageURL string) (*domain.ExtractedReceipt, error) {
	return s.receipt, s.err
}

// newScanApp mounts the handler behind the error middleware so the
// DomainError-to-status mapping is what gets asserted.
func newScanApp(extractor extraction.Extractor) *fiber.App {
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	handler := handlers.NewScanHandler(extractor, zap.NewNop())
	app.Post("/scan", handler.Scan)
	return app
}

func postScan(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestScanReturnsExtractedReceipt(t *testing.T) {
	iva := 945.0
	app := newScanApp(&stubExtractor{receipt: &domain.ExtractedReceipt{
		MerchantName: "Shell",
		Date:         "2024-03-01",
		Amount:       4500,
		Currency:     "ARS",
		IvaAmount:    &iva,
		Category:     "Combustible",
	}})

	resp := postScan(t, app, `{"receiptUrl":"https://files.example/receipt.jpg"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got domain.ExtractedReceipt
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MerchantName != "Shell" || got.Amount != 4500 {
		t.Fatalf("unexpected receipt: %+v", got)
	}
}

func TestScanMissingURL(t *testing.T) {
	app := newScanApp(&stubExtractor{})

	resp := postScan(t, app, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestScanErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"fetch failure", fmt.Errorf("%w: 404", extraction.ErrMediaFetch), http.StatusBadRequest},
		{"empty image", extraction.ErrEmptyImage, http.StatusBadRequest},
		{"model invocation failure", fmt.Errorf("%w: timeout", extraction.ErrModelInvocation), http.StatusInternalServerError},
		{"malformed extraction", extraction.ErrMalformedExtraction, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newScanApp(&stubExtractor{err: tc.err})
			resp := postScan(t, app, `{"receiptUrl":"https://files.example/receipt.jpg"}`)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}
