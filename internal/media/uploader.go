package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hey-chat/internal/domain"
)

// MaxImageBytes limita el tamano decodificado de una imagen subida.
const MaxImageBytes = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Uploader guarda una imagen codificada como data URI y devuelve su URL publica.
type Uploader interface {
	Upload(ctx context.Context, folder, dataURI string) (string, error)
}

type disabledUploader struct{}

// NewDisabledUploader rechaza toda subida con ErrMediaUnavailable.
func NewDisabledUploader() Uploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(context.Context, string, string) (string, error) {
	return "", domain.ErrMediaUnavailable
}

// IsDataURI reporta si el valor es una imagen embebida que hay que subir.
func IsDataURI(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "data:")
}

type image struct {
	contentType string
	extension   string
	data        []byte
}

// decodeDataURI acepta solo data:image/<tipo>;base64,<payload> de los tipos conocidos.
func decodeDataURI(value string) (image, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return image{}, domain.ErrMediaInvalid
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return image{}, domain.ErrMediaInvalid
	}
	contentType, encoding, ok := strings.Cut(header, ";")
	if !ok || encoding != "base64" {
		return image{}, domain.ErrMediaInvalid
	}
	contentType = strings.ToLower(contentType)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return image{}, domain.ErrMediaInvalid
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return image{}, domain.ErrMediaInvalid
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 || len(data) > MaxImageBytes {
		return image{}, domain.ErrMediaInvalid
	}
	return image{contentType: contentType, extension: ext, data: data}, nil
}

func objectKey(folder, ext string, now time.Time) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "uploads"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s.%s", folder, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

func (img image) reader() *bytes.Reader {
	return bytes.NewReader(img.data)
}
