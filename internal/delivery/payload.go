package delivery

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/desertthunder/spotdown/internal/shared"
)

const ContentTypeMP3 = "audio/mpeg"

const payloadPrefix = "data:" + ContentTypeMP3 + ";base64,"

// EncodePayload renders audio bytes as a data URI.
func EncodePayload(data []byte) string {
	return payloadPrefix + base64.StdEncoding.EncodeToString(data)
}

// DecodePayload reverses [EncodePayload]. Any data URI with a base64 body is accepted.
func DecodePayload(content string) ([]byte, error) {
	rest, ok := strings.CutPrefix(content, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a data uri", shared.ErrInvalidInput)
	}

	_, body, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, fmt.Errorf("%w: payload is not base64 encoded", shared.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return data, nil
}
