package handler

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// ValidateLineSignature validates the X-Line-Signature header of a webhook
// request: the base64 encoded HMAC-SHA256 of the raw body keyed with the
// channel secret.
// See: https://developers.line.biz/en/reference/messaging-api/#signature-validation
func ValidateLineSignature(body []byte, signature string, channelSecret string) bool {
	if signature == "" || channelSecret == "" {
		return false
	}
	return webhook.ValidateSignature(channelSecret, signature, body)
}
