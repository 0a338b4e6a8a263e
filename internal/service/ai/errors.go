package ai

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"evalsum/internal/models"
)

// User-facing messages for provider failures.
const (
	MsgInvalidCredential = "Invalid API key. Please check your %s API key."
	MsgRateLimited       = "Rate limit exceeded. Please try again in a moment."
	MsgBadRequest        = "Invalid request. The PDF might be corrupted or in an unsupported format."
	MsgContentDeclined   = "The AI declined to process this content for safety reasons."
	MsgTimeout           = "The AI provider did not respond in time. Please try again."
	MsgProviderError     = "Failed to process the evaluation with AI. Please try again."
	MsgMalformedSummary  = "The AI response did not follow the expected summary format."
)

var (
	// "status code: 401", "Error 400,", "StatusCode=429"
	labeledStatus = regexp.MustCompile(`(?i)\b(?:status(?:\s*code)?|statuscode|error)\s*[:=]?\s*(\d{3})\b`)
	// `POST "https://...": 401 Unauthorized`
	textStatus = regexp.MustCompile(`\b(\d{3}) (?:Unauthorized|Forbidden|Bad Request|Too Many Requests)\b`)
)

var refusalReasons = map[string]struct{}{
	"refusal":            {},
	"content_filter":     {},
	"safety":             {},
	"prohibited_content": {},
	"blocklist":          {},
	"spii":               {},
}

func isRefusal(finishReason string) bool {
	_, ok := refusalReasons[strings.ToLower(finishReason)]
	return ok
}

// providerStatus extracts the HTTP status of a provider error, or 0.
func providerStatus(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	msg := err.Error()
	for _, re := range []*regexp.Regexp{labeledStatus, textStatus} {
		if m := re.FindStringSubmatch(msg); m != nil {
			if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 400 && code < 600 {
				return code
			}
		}
	}
	return 0
}

// classify maps a provider call failure to the error taxonomy.
func classify(err error, provider string) *models.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewError(models.KindTimeout, MsgTimeout, err)
	}
	status := providerStatus(err)
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "refusal") || strings.Contains(msg, "content declined"):
		return models.NewError(models.KindContentDeclined, MsgContentDeclined, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "invalid x-api-key") ||
		strings.Contains(msg, "api key not valid"):
		return models.NewError(models.KindInvalidCredential, invalidCredentialMessage(provider), err)
	case status == http.StatusTooManyRequests || strings.Contains(msg, "rate_limit"):
		return models.NewError(models.KindRateLimited, MsgRateLimited, err)
	case status == http.StatusBadRequest:
		return models.NewError(models.KindBadRequest, MsgBadRequest, err)
	default:
		return models.NewError(models.KindProviderError, MsgProviderError, err)
	}
}

func invalidCredentialMessage(provider string) string {
	return strings.Replace(MsgInvalidCredential, "%s", ProviderLabel(provider), 1)
}
