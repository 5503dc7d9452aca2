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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tripcount/platform/common/usage"
	"tripcount/platform/gateway/entitlement"
	"tripcount/platform/shared/config"
)

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// usageCmd returns the usage subcommand.
func usageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect metered usage",
	}

	cmd.AddCommand(usageShowCmd(a))

	return cmd
}

func usageShowCmd(a *app) *cobra.Command {
	var subject, month string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a subject's plan and monthly counters",
		Long: `Show the effective plan and the counters for one month.

Examples:
  tripctl usage show --subject user_123
  tripctl usage show --subject user_123 --month 2025-04 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if month == "" {
				month = usage.MonthKey(time.Now())
			}
			if !monthKeyRe.MatchString(month) {
				return fmt.Errorf("--month must be YYYY-MM, got %q", month)
			}

			return a.withStores(cmd, func(_ *config.Config, s *stores, out io.Writer) error {
				eval := entitlement.NewEvaluator(s.ledger, s.ledger, s.segments, a.log)
				plan := eval.GetPlan(cmd.Context(), subject)

				meter, err := s.ledger.GetMeter(cmd.Context(), subject, month)
				if err != nil {
					return fmt.Errorf("failed to read usage: %w", err)
				}
				summary := entitlement.Summarize(plan, month, meter)

				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(summary)
				}
				return printSummary(out, subject, summary)
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject id (required)")
	cmd.Flags().StringVarP(&month, "month", "m", "", "Month as YYYY-MM (default: current UTC month)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func printSummary(out io.Writer, subject string, s entitlement.Summary) error {
	fmt.Fprintf(out, "Subject: %s\nPlan:    %s\nMonth:   %s\n\n", subject, s.Plan, s.MonthKey)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTER\tUSED\tLIMIT")
	for _, kind := range usage.Kinds {
		line := s.Usage[kind]
		fmt.Fprintf(tw, "%s\t%d\t%s\n", kind, line.Used, line.Limit)
	}
	return tw.Flush()
}
