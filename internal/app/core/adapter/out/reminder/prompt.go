package reminder

import (
	"strings"
	"text/template"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

var promptTemplate = template.Must(template.New("reminder").Parse(
	`You are a helpful assistant that generates payment reminders for businesses.

Generate a personalized payment reminder for the customer using the following information:

Customer Name: {{.CustomerName}}
Outstanding Amount: {{.OutstandingAmount}}
Business Name: {{.BusinessName}}

The payment reminder should be polite and professional, and it should clearly state the outstanding amount and the business name. It should also encourage the customer to make the payment as soon as possible.
Do not add any salutations or closing remarks.`))

// BuildPrompt 以固定模板產生送給模型的提示詞
func BuildPrompt(req usecase.ReminderRequest) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}
