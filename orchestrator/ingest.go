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

package orchestrator

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"tripcount/platform/common/usage"
	"tripcount/platform/gateway/entitlement"
	"tripcount/platform/orchestrator/itinerary"
	"tripcount/platform/orchestrator/llm"
)

// multipart framing allowance on top of the plan's file size limit
const multipartOverhead = 64 * 1024

type ingestTextRequest struct {
	Text string `json:"text"`
}

// IngestItinerary handles POST /api/ingest/itinerary with either a JSON
// {"text": ...} body, a text/plain body, or a multipart "file" upload.
func (h *Handler) IngestItinerary(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, true)

	if h.Ingest == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_configured", "Itinerary import is not available", nil)
		return
	}

	check, ok := h.checkMonthly(w, r, s, usage.KindAIGenerations)
	if !ok {
		return
	}

	maxBytes := entitlement.ComputeLimit(entitlement.FileSizeLimitBytes, s.plan).Int()
	in, ierr := readIngestInput(w, r, int64(maxBytes))
	if ierr != nil {
		extra := map[string]interface{}(nil)
		code := "invalid_request"
		if ierr.status == http.StatusRequestEntityTooLarge {
			code = "file_too_large"
			extra = map[string]interface{}{"plan": s.plan, "maxBytes": maxBytes}
		}
		h.writeError(w, ierr.status, code, ierr.message, extra)
		return
	}

	res, err := h.Ingest.Ingest(r.Context(), s.subject, s.requestID, in)
	if res != nil && res.Response != nil {
		// the AI call is billable even when its output is rejected
		h.recordAI(r, s, res.Response, err == nil)
	}
	if err != nil {
		h.writeIngestError(w, s, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flights":    res.Itinerary.Flights,
		"hotels":     res.Itinerary.Hotels,
		"aiProvider": res.Response.Provider,
		"aiModel":    res.Response.Model,
		"usage":      afterUse(s.plan, check),
	})
}

func (h *Handler) recordAI(r *http.Request, s requestScope, resp *llm.AIResponse, countGeneration bool) {
	ev := usage.Event{
		SubjectID: s.subject,
		RequestID: s.requestID,
		Provider:  string(resp.Provider),
		Endpoint:  "ingest/itinerary",
		Units:     resp.Usage.TotalTokens,
		CostCents: usage.CostCents(resp.CostEstimate),
	}
	if countGeneration {
		ev.Kind = usage.KindAIGenerations
	}
	h.Recorder.Record(r.Context(), ev)
}

func (h *Handler) writeIngestError(w http.ResponseWriter, s requestScope, err error) {
	switch {
	case errors.Is(err, itinerary.ErrNoText):
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Provide itinerary text or a file", nil)
	case errors.Is(err, itinerary.ErrUnsupportedMedia):
		h.writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error(), nil)
	case errors.Is(err, itinerary.ErrUnreadableDocument):
		h.writeError(w, http.StatusUnprocessableEntity, "unreadable_document", "The document could not be read", nil)
	case errors.Is(err, itinerary.ErrInvalidItinerary):
		h.writeError(w, http.StatusUnprocessableEntity, "invalid_itinerary", "Could not extract an itinerary from the document", nil)
	default:
		h.writeDispatchError(w, s, err)
	}
}

// inputError is a rejected ingest body
type inputError struct {
	status  int
	message string
}

func badInput(status int, message string) *inputError {
	return &inputError{status: status, message: message}
}

func tooLarge() *inputError {
	return badInput(http.StatusRequestEntityTooLarge, "File exceeds the size limit for your plan")
}

// readIngestInput reads the upload under the plan's size cap
func readIngestInput(w http.ResponseWriter, r *http.Request, maxBytes int64) (itinerary.Input, *inputError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if isTooLarge(err) {
				return itinerary.Input{}, tooLarge()
			}
			return itinerary.Input{}, badInput(http.StatusBadRequest, "Invalid multipart body")
		}
		in := itinerary.Input{Text: r.FormValue("text")}

		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}
		if err != nil {
			return itinerary.Input{}, badInput(http.StatusBadRequest, "Invalid file upload")
		}
		defer func() { _ = file.Close() }()

		if header.Size > maxBytes {
			return itinerary.Input{}, tooLarge()
		}
		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			return itinerary.Input{}, badInput(http.StatusBadRequest, "Invalid file upload")
		}
		if int64(len(data)) > maxBytes {
			return itinerary.Input{}, tooLarge()
		}
		in.Upload = &itinerary.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
		return in, nil

	case "text/plain":
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			if isTooLarge(err) {
				return itinerary.Input{}, badInput(http.StatusRequestEntityTooLarge, "Text exceeds the size limit for your plan")
			}
			return itinerary.Input{}, badInput(http.StatusBadRequest, "Invalid request body")
		}
		return itinerary.Input{Text: string(data)}, nil

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		var req ingestTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if isTooLarge(err) {
				return itinerary.Input{}, badInput(http.StatusRequestEntityTooLarge, "Text exceeds the size limit for your plan")
			}
			return itinerary.Input{}, badInput(http.StatusBadRequest, "Invalid request body")
		}
		return itinerary.Input{Text: strings.TrimSpace(req.Text)}, nil
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
