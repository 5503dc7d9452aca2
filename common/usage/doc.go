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

/*
Package usage meters per-subject consumption of the metered features.

# Overview

Three counters are kept per subject per calendar month (UTC):

  - aiGenerations: AI completions requested through the proxy or ingest
  - flightResolves: flight lookups attached to a trip
  - airportQueries: airport schedule board reads

Counters live in a Ledger. Every metered upstream call is additionally
appended to the provider usage log with its unit count and cost in cents.

# Recording

Handlers record after the user-visible action succeeded. Recording is
best-effort and never fails the request:

	recorder := usage.NewRecorder(ledger, log)
	recorder.Record(r.Context(), usage.Event{
	    SubjectID: subject,
	    Kind:      usage.KindAIGenerations,
	    Count:     1,
	    Provider:  "deepseek",
	    Endpoint:  "chat.completions",
	    Units:     512,
	    CostCents: 0,
	})

The read-then-increment sequence is not atomic across requests: two
concurrent requests at limit-1 can both pass the check. Each increment is
atomic on its own.
*/
package usage
