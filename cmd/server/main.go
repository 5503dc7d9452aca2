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

// Package main is the entry point for the TripCount API service.
//
// The service fronts the mobile app:
// - Routes AI chat and itinerary extraction to the cheapest configured provider
// - Serves airport boards, route search and flight resolution
// - Enforces free/trial/pro plan limits against a monthly usage ledger
//
// Usage:
//
//	./server
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string (optional, memory stores otherwise)
//	REDIS_URL - Redis for the burst limiter (optional)
//	OPENAI_API_KEY, DEEPSEEK_API_KEY, XAI_API_KEY - AI provider keys
//	AERODATABOX_API_KEY, AVIATIONSTACK_API_KEY - flight data keys
//	CONFIG_FILE - optional YAML config applied before the environment
package main

import (
	"tripcount/platform/orchestrator"
)

func main() {
	orchestrator.Run()
}
