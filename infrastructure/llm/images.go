package llm

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// inlineImage is a decoded image ready to be embedded in a provider request.
type inlineImage struct {
	Data     []byte
	MIMEType string
	Base64   string
}

// decodeImage decodes a base64 image and sniffs its MIME type. Images that
// do not sniff as image/* are rejected, since hosted providers refuse them
// with opaque errors.
func decodeImage(b64 string) (inlineImage, error) {
	b64 = strings.TrimSpace(b64)
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return inlineImage{}, fmt.Errorf("decode image: %w", err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return inlineImage{}, fmt.Errorf("attachment is %s, not an image", mt.String())
	}

	return inlineImage{
		Data:     data,
		MIMEType: mt.String(),
		Base64:   b64,
	}, nil
}

// dataURL renders the image as an RFC 2397 data URL.
func (img inlineImage) dataURL() string {
	return "data:" + img.MIMEType + ";base64," + img.Base64
}
