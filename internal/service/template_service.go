// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/adworldmediaonline/email-cron/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "there"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RenderForRecipient substitutes the recipient-level placeholder tokens.
func RenderForRecipient(template string, rec *model.Recipient) string {
	return RenderTemplate(template, map[string]string{
		"name":  rec.Name,
		"email": rec.Email,
	})
}
