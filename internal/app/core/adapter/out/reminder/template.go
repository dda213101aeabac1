package reminder

import (
	"context"
	"strings"
	"text/template"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

var offlineTemplate = template.Must(template.New("offline").Parse(
	`This is a gentle reminder that an amount of {{.OutstandingAmount}} is outstanding on your account with {{.BusinessName}}. We kindly request you to clear the payment at the earliest convenience.`))

// TemplateGenerator 不呼叫外部服務，直接套用固定句型
// 沒有設定 API key 時作為預設實作
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) GenerateReminder(ctx context.Context, req usecase.ReminderRequest) (string, error) {
	var b strings.Builder
	if err := offlineTemplate.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}

var _ usecase.ReminderGenerator = (*TemplateGenerator)(nil)
