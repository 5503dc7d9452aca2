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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tripcount/platform/common/usage"
	"tripcount/platform/shared/config"
)

// trialCmd returns the trial subcommand.
func trialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Manage subject trials",
	}

	cmd.AddCommand(trialStartCmd(a))
	cmd.AddCommand(trialShowCmd(a))

	return cmd
}

func trialStartCmd(a *app) *cobra.Command {
	var subject string
	var days int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or restart a trial for a subject",
		Long: `Start a trial beginning now. An existing trial for the subject is replaced.

Examples:
  tripctl trial start --subject user_123
  tripctl trial start --subject user_123 --days 14`,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject = strings.TrimSpace(subject)
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}

			return a.withStores(cmd, func(_ *config.Config, s *stores, out io.Writer) error {
				trial, err := s.ledger.StartTrial(cmd.Context(), subject, time.Now().UTC(), time.Duration(days)*24*time.Hour)
				if err != nil {
					return fmt.Errorf("failed to start trial: %w", err)
				}
				fmt.Fprintf(out, "Trial started for %s\n", trial.SubjectID)
				fmt.Fprintf(out, "  starts: %s\n", trial.StartedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "  ends:   %s\n", trial.EndsAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject id (required)")
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Trial length in days")

	return cmd
}

func trialShowCmd(a *app) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a subject's trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			return a.withStores(cmd, func(_ *config.Config, s *stores, out io.Writer) error {
				trial, err := s.ledger.GetTrial(cmd.Context(), subject)
				if errors.Is(err, usage.ErrTrialNotFound) {
					fmt.Fprintf(out, "%s has no trial\n", subject)
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to read trial: %w", err)
				}
				state := "expired"
				if trial.Active(time.Now()) {
					state = "active"
				}
				fmt.Fprintf(out, "%s: %s (%s to %s)\n", subject, state,
					trial.StartedAt.Format(time.RFC3339), trial.EndsAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject id (required)")

	return cmd
}
