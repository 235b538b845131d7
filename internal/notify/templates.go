package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type Rendered struct {
	Title string
	Body  string
}

type messageTemplate struct {
	title *template.Template
	body  *template.Template
}

func mustTemplate(title, body string) messageTemplate {
	return messageTemplate{
		title: template.Must(template.New("title").Option("missingkey=zero").Parse(title)),
		body:  template.Must(template.New("body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[Kind]messageTemplate{
	KindOrderConfirmed: mustTemplate(
		"Your order at {{.establishment}} is confirmed",
		"Payment received for {{.quantity}} x {{.pack}}. Pick it up at {{.address}} on {{.pickupDate}} between {{.pickupStart}} and {{.pickupEnd}}.",
	),
	KindOrderCancelled: mustTemplate(
		"Your order at {{.establishment}} was cancelled",
		"Order {{.orderId}} for {{.pack}} was cancelled{{if .reason}} ({{.reason}}){{end}}.",
	),
	KindPickupReady: mustTemplate(
		"{{.pack}} is ready for pickup",
		"{{.establishment}} packed your order. Address: {{.address}}. Phone: {{.phone}}. Pickup window: {{.pickupStart}} - {{.pickupEnd}}.",
	),
	KindPickupReminder24h: mustTemplate(
		"Pickup tomorrow at {{.establishment}}",
		"Reminder: {{.quantity}} x {{.pack}} waits for you on {{.pickupDate}} between {{.pickupStart}} and {{.pickupEnd}} at {{.address}} ({{.phone}}).",
	),
	KindPickupReminder2h: mustTemplate(
		"Pickup soon at {{.establishment}}",
		"Your {{.pack}} pickup starts soon: {{.pickupStart}} - {{.pickupEnd}} at {{.address}} ({{.phone}}).",
	),
	KindEstablishmentVerified: mustTemplate(
		"{{.establishment}} verification: {{.status}}",
		"Your establishment {{.establishment}} is now {{.status}}.{{if .note}} Note: {{.note}}{{end}}",
	),
}

func Render(kind Kind, data map[string]string) (Rendered, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("notify: unknown kind %q", kind)
	}
	var title, body bytes.Buffer
	if err := tpl.title.Execute(&title, data); err != nil {
		return Rendered{}, fmt.Errorf("render title: %w", err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("render body: %w", err)
	}
	return Rendered{Title: title.String(), Body: body.String()}, nil
}
