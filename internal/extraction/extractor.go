package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared/constant"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/config"
	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// Extractor turns a receipt image into a normalized structured record.
type Extractor interface {
	FromImage(ctx context.Context, imageData []byte, mimeType string) (*domain.ExtractedReceipt, error)
	FromURL(ctx context.Context, imageURL string) (*domain.ExtractedReceipt, error)
}

// completionService is the slice of the OpenAI client the extractor needs.
type completionService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIExtractor submits a single multimodal prompt to a vision-capable
// model and parses the strict JSON reply.
type OpenAIExtractor struct {
	completions completionService
	model       string
	timeout     config.ExtractionConfig
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewOpenAIExtractor constructs the adapter.
func NewOpenAIExtractor(cfg config.ExtractionConfig, logger *zap.Logger) *OpenAIExtractor {
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIExtractor{
		completions: &client.Chat.Completions,
		model:       cfg.Model,
		timeout:     cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		logger:      logger,
	}
}

// extractionPrompt demands a bare JSON object; the category list is the
// closed set the dashboard understands.
func extractionPrompt() string {
	categories := make([]string, 0, len(domain.ReceiptCategories))
	for _, c := range domain.ReceiptCategories {
		categories = append(categories, fmt.Sprintf("%q", c))
	}
	return fmt.Sprintf(`Analyze this receipt image and extract the following information in JSON format:
- merchant_name: The name of the merchant or store.
- date: The date of the transaction in YYYY-MM-DD format.
- amount: The total amount paid (number only, no symbols).
- currency: The currency code (e.g., ARS, USD). Assume ARS if in Argentina context or unclear.
- iva_amount: The explicit VAT/IVA amount if found, otherwise null. (number only).
- category: Choose the best fit from: [%s].

Return ONLY the valid JSON string.`, strings.Join(categories, ", "))
}

// FromImage extracts from raw image bytes.
func (e *OpenAIExtractor) FromImage(ctx context.Context, imageData []byte, mimeType string) (*domain.ExtractedReceipt, error) {
	if len(imageData) == 0 {
		return nil, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout.Timeout())
	defer cancel()

	base64Image := base64.StdEncoding.EncodeToString(imageData)

	contentParts := []openai.ChatCompletionContentPartUnionParam{
		{
			OfText: &openai.ChatCompletionContentPartTextParam{
				Type: constant.Text("text"),
				Text: extractionPrompt(),
			},
		},
		{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				Type: constant.ImageURL("image_url"),
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64Image),
					Detail: "high",
				},
			},
		},
	}

	params := openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: contentParts,
					},
				},
			},
		},
		MaxTokens: openai.Int(1024),
	}

	completion, err := e.completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrModelInvocation)
	}

	return parseModelReply(completion.Choices[0].Message.Content)
}

// FromURL fetches the image over plain HTTP (object-store URLs carry their
// own signing) and delegates to FromImage.
func (e *OpenAIExtractor) FromURL(ctx context.Context, imageURL string) (*domain.ExtractedReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMediaFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaFetch, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mimeType := resp.Header.Get("Content-Type")
	return e.FromImage(ctx, data, mimeType)
}

// parseModelReply strips markdown fences and decodes the strict contract.
// Anything short of valid JSON with a numeric amount fails loudly; partial
// objects never reach the caller.
func parseModelReply(reply string) (*domain.ExtractedReceipt, error) {
	clean := stripCodeFences(reply)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedExtraction)
	}

	var raw struct {
		MerchantName string   `json:"merchant_name"`
		Date         string   `json:"date"`
		Amount       *float64 `json:"amount"`
		Currency     string   `json:"currency"`
		IvaAmount    *float64 `json:"iva_amount"`
		Category     string   `json:"category"`
	}
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	if raw.Amount == nil {
		return nil, fmt.Errorf("%w: missing amount", ErrMalformedExtraction)
	}

	receipt := &domain.ExtractedReceipt{
		MerchantName: raw.MerchantName,
		Date:         raw.Date,
		Amount:       *raw.Amount,
		Currency:     raw.Currency,
		IvaAmount:    raw.IvaAmount,
		Category:     raw.Category,
	}
	if receipt.Currency == "" {
		receipt.Currency = "ARS"
	}
	if !domain.IsValidCategory(receipt.Category) {
		receipt.Category = domain.CategoryUnclassified
	}
	return receipt, nil
}

func stripCodeFences(reply string) string {
	clean := strings.ReplaceAll(reply, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}
