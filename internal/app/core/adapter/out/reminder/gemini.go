package reminder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

const (
	DefaultModel      = "gemini-2.0-flash"
	DefaultAPIVersion = "v1beta"
)

// GeminiConfig 生成式語言 API 的設定
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	// Endpoint: 空字串使用 SDK 預設位址
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GeminiGenerator 透過 genai SDK 的 GenerateContent 產生提醒文字
type GeminiGenerator struct {
	model  string
	client *genai.Client
}

// NewGeminiGenerator 建立 genai client
//
// 參數:
//
//	ctx: 上下文
//	cfg: API key、模型與逾時設定
//
// 回傳:
//
//	*GeminiGenerator: 產生器
//	error: 建立 client 失敗 (如缺少 API key)
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.Endpoint,
			APIVersion: DefaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new genai client: %w", err)
	}
	return &GeminiGenerator{model: cfg.Model, client: client}, nil
}

// HTTPError 上游回應非 2xx
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generate content failed: status %d", e.Status)
}

// Unwrap 讓呼叫端以 errors.Is(err, domain.ErrExternalService) 判斷
func (e *HTTPError) Unwrap() error {
	return domain.ErrExternalService
}

var errEmptyReply = errors.New("model returned no text")

// GenerateReminder 呼叫 GenerateContent 並回傳第一個非空白的文字
func (g *GeminiGenerator) GenerateReminder(ctx context.Context, req usecase.ReminderRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", externalError(err)
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil {
				continue
			}
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %v", domain.ErrExternalService, errEmptyReply)
}

// externalError 將 SDK 錯誤轉為 ErrExternalService；上游狀態碼保留在 HTTPError
func externalError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPError{Status: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &HTTPError{Status: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
}

var _ usecase.ReminderGenerator = (*GeminiGenerator)(nil)
