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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tripcount/platform/orchestrator"
	"tripcount/platform/orchestrator/llm"
)

// providersCmd returns the providers subcommand.
func providersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect AI provider routing",
	}

	cmd.AddCommand(providersSelectCmd(a))

	return cmd
}

func providersSelectCmd(a *app) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show which providers a request would be routed to",
		Long: `Resolve the configured provider credentials and print the dispatch order
for a request, cheapest first. No provider is called.

Examples:
  tripctl providers select
  tripctl providers select --model gpt-4o`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if model != "" {
				if _, ok := llm.Lookup(llm.Model(model)); !ok {
					return fmt.Errorf("unknown model %q", model)
				}
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			creds := orchestrator.LoadProviderCredentials(cmd.Context(), cfg, a.log)
			router := orchestrator.NewRouter(cfg, a.log)

			candidates, err := router.Candidates(creds, llm.Model(model))
			if errors.Is(err, llm.ErrNoProvidersConfigured) {
				return fmt.Errorf("no AI provider keys are configured")
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tPROVIDER\tMODEL\tUSD/1K TOKENS")
			for i, c := range candidates {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.5f\n", i+1, c.Provider, c.Model, c.CostPer1KTokens)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Requested model (default: cheapest available)")

	return cmd
}
