// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package itinerary turns booking confirmations into structured flights and
// hotels using the AI router.
package itinerary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedMedia is returned for uploads we cannot read (images included)
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrUnreadableDocument is returned when a PDF cannot be parsed
	ErrUnreadableDocument = errors.New("document could not be read")
	// ErrNoText is returned when neither text nor a readable file was supplied
	ErrNoText = errors.New("no itinerary text found")
)

// Upload is a raw uploaded file
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MediaType resolves the upload's media type from the declared content type,
// then the file extension, then content sniffing.
func (u Upload) MediaType() string {
	if mt, _, err := mime.ParseMediaType(u.ContentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if ext := strings.ToLower(filepath.Ext(u.Filename)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			mt, _, _ := mime.ParseMediaType(byExt)
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(u.Data))
	return mt
}

// Extract returns the plain text of an upload
func Extract(ctx context.Context, u Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mt := u.MediaType()
	switch {
	case strings.HasPrefix(mt, "text/"):
		return string(u.Data), nil
	case mt == "application/pdf":
		return extractPDF(u.Data)
	case strings.HasPrefix(mt, "image/"):
		return "", fmt.Errorf("%w: image text recognition is not available, paste the text instead", ErrUnsupportedMedia)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt)
	}
}

func extractPDF(data []byte) (text string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return buf.String(), nil
}
