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

package itinerary

import (
	"context"
	"fmt"
	"strings"

	"tripcount/platform/orchestrator/llm"
	"tripcount/platform/shared/logger"
)

const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 2048
)

// Dispatcher sends one chat request through the provider router
type Dispatcher interface {
	Dispatch(ctx context.Context, creds llm.CredentialRegistry, req llm.ChatRequest) (*llm.AIResponse, error)
}

// Input is either pasted text or an uploaded file. Text wins when both are set.
type Input struct {
	Text   string
	Upload *Upload
}

// Result is a successful or billable ingest. Response is set whenever the AI
// call succeeded, even if its output failed to parse.
type Result struct {
	Itinerary  *Itinerary
	Response   *llm.AIResponse
	ArchiveKey string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithArchiver stores raw uploads before extraction
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// Service runs extraction, one AI call, and parsing
type Service struct {
	dispatcher Dispatcher
	creds      llm.CredentialRegistry
	archiver   Archiver
	log        *logger.Logger
}

// NewService creates an ingest service
func NewService(dispatcher Dispatcher, creds llm.CredentialRegistry, log *logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{dispatcher: dispatcher, creds: creds, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest extracts the itinerary. Parse failures are not retried; they return
// ErrInvalidItinerary together with a Result carrying the AI response.
func (s *Service) Ingest(ctx context.Context, subjectID, requestID string, in Input) (*Result, error) {
	res := &Result{}

	text := strings.TrimSpace(in.Text)
	if text == "" && in.Upload != nil {
		if s.archiver != nil {
			key, err := s.archiver.Archive(ctx, subjectID, *in.Upload)
			if err != nil {
				s.log.Warn(subjectID, requestID, "failed to archive itinerary upload", map[string]interface{}{
					"filename": in.Upload.Filename,
					"error":    err.Error(),
				})
			}
			res.ArchiveKey = key
		}

		extracted, err := Extract(ctx, *in.Upload)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(extracted)
	}
	if text == "" {
		return nil, ErrNoText
	}

	temperature := extractionTemperature
	resp, err := s.dispatcher.Dispatch(ctx, s.creds, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: &temperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("itinerary extraction failed: %w", err)
	}
	res.Response = resp

	it, err := Parse(resp.Content)
	if err != nil {
		s.log.Warn(subjectID, requestID, "AI returned an unparseable itinerary", map[string]interface{}{
			"provider": string(resp.Provider),
			"model":    string(resp.Model),
			"error":    err.Error(),
		})
		return res, err
	}
	res.Itinerary = it

	s.log.Info(subjectID, requestID, "itinerary extracted", map[string]interface{}{
		"provider": string(resp.Provider),
		"flights":  len(it.Flights),
		"hotels":   len(it.Hotels),
	})
	return res, nil
}
