package woztell

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

// ErrNoMessage is returned for webhook deliveries that carry no user
// message (status callbacks, pings).
var ErrNoMessage = errors.New("webhook payload has no message")

type incoming struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ID      string `json:"id"`
	Contact *struct {
		Name string `json:"name"`
	} `json:"contact,omitempty"`
	Message *struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
	} `json:"message"`
}

var mediaPlaceholders = map[string]string{
	"image":    "[Imagen]",
	"document": "[Documento]",
	"audio":    "[Audio]",
	"video":    "[Video]",
}

// ParseIncoming decodes a Woztell webhook body. Media messages are turned
// into their caption or a bracketed placeholder.
func ParseIncoming(payload []byte) (*domain.InboundMessage, error) {
	var in incoming
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, &domain.ErrValidation{Field: "body", Message: "invalid webhook payload"}
	}
	if CleanPhone(in.From) == "" || in.Message == nil {
		return nil, ErrNoMessage
	}

	msgType := in.Message.Type
	if msgType == "" {
		msgType = "unknown"
	}

	var content string
	switch msgType {
	case "text":
		content = in.Message.Text
	case "audio":
		content = mediaPlaceholders[msgType]
	case "image", "document", "video":
		content = in.Message.Caption
		if content == "" {
			content = mediaPlaceholders[msgType]
		}
	default:
		content = "[" + msgType + "]"
	}

	msg := &domain.InboundMessage{
		From:      CleanPhone(in.From),
		To:        in.To,
		Type:      msgType,
		Content:   content,
		ID:        in.ID,
		Timestamp: time.Now().UTC(),
	}
	if in.Contact != nil {
		msg.ContactName = in.Contact.Name
	}
	return msg, nil
}

// CleanPhone keeps only digits and prefixes Spanish country code 34 to bare
// nine digit numbers starting with 6, 7, 8 or 9.
func CleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if len(clean) == 9 && strings.ContainsRune("6789", rune(clean[0])) {
		clean = "34" + clean
	}
	return clean
}

// ValidateSignature checks a hex HMAC-SHA256 of payload in constant time.
func ValidateSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(expected))
}
