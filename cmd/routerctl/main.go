// Package main provides routerctl, the command-line tool for validating
// policy documents and routing tasks without running routerd.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	policyrouter "github.com/ferro-labs/policy-router"
	"github.com/ferro-labs/policy-router/internal/version"
	"github.com/ferro-labs/policy-router/policy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "routerctl",
		Short: "Policy router command line tool",
		Long: `Inspect policy documents and route tasks through the policy router.

Use 'routerctl validate' to check a policy file, 'routerctl evaluate' to
see which model a profile picks for given constraints, and
'routerctl route' to run the full pipeline locally.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newProfilesCmd(),
		newEvaluateCmd(),
		newRouteCmd(),
		newPolicyCmd(),
		newVersionCmd(),
	)
	return root
}

// --- validate command ---

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <policy-file>",
		Short: "Validate a policy document",
		Long: `Parse a policy document (YAML or JSON) and report the first error.

Every condition and action is checked, so a document that validates here
loads cleanly in routerd.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := policy.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("validation error: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "✓ Policy is valid")
			for _, name := range doc.ProfileNames() {
				p := doc.Profiles[name]
				_, _ = fmt.Fprintf(out, "  %-20s provider=%s default_model=%s rules=%d\n",
					name, p.Provider, p.DefaultModel, len(p.Rules))
			}
			return nil
		},
	}
}

// --- profiles command ---

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles <policy-file>",
		Short: "List the profiles of a policy document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := policy.LoadFile(args[0])
			if err != nil {
				return err
			}
			for _, name := range doc.ProfileNames() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// --- evaluate command ---

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a profile against constraints",
		Long: `Run the policy engine only: no sanitizing, no backend call.

Prints the decision and the policy path, one entry per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			profile, _ := cmd.Flags().GetString("profile")
			latency, _ := cmd.Flags().GetInt("latency-sla-ms")
			budget, _ := cmd.Flags().GetFloat64("budget-cents")
			safety, _ := cmd.Flags().GetString("safety")

			doc, err := policy.LoadFile(policyPath)
			if err != nil {
				return err
			}
			c := policy.Constraints{LatencySLAMs: latency, BudgetCents: budget, Safety: policy.Safety(safety)}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("invalid constraints: %w", err)
			}

			d := policy.NewEngine(doc).Evaluate(profile, c)
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "provider: %s\nmodel:    %s\npolicy path:\n", d.Provider, d.Model)
			for _, entry := range d.PolicyPath {
				_, _ = fmt.Fprintf(out, "  - %s\n", entry)
			}
			return nil
		},
	}
	cmd.Flags().String("policy", "policies/fast-cheap-safe.yaml", "policy document")
	cmd.Flags().String("profile", policyrouter.DefaultProfile, "profile name")
	cmd.Flags().Int("latency-sla-ms", policy.DefaultLatencySLAMs, "latency SLA in milliseconds")
	cmd.Flags().Float64("budget-cents", policy.DefaultBudgetCents, "budget in US cents")
	cmd.Flags().String("safety", string(policy.SafetyStandard), "safety level (standard|strict)")
	return cmd
}

// --- route command ---

func newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route a task and print the result as JSON",
		Long: `Run the full routing pipeline locally and print the RouteResult.

With --config the router is built exactly as routerd builds it. Without it,
--policy is loaded with stub backends; --live switches to the real OpenAI
and Anthropic clients (keys from OPENAI_API_KEY / ANTHROPIC_API_KEY, or a
.env file in the working directory).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Variables already in the environment win over .env.
			_ = godotenv.Load()

			cfgPath, _ := cmd.Flags().GetString("config")
			policyPath, _ := cmd.Flags().GetString("policy")
			live, _ := cmd.Flags().GetBool("live")
			task, _ := cmd.Flags().GetString("task")
			profile, _ := cmd.Flags().GetString("profile")
			schemaPath, _ := cmd.Flags().GetString("schema")

			var cfg policyrouter.Config
			if cfgPath != "" {
				loaded, err := policyrouter.LoadConfig(cfgPath)
				if err != nil {
					return err
				}
				cfg = *loaded
			} else {
				cfg.Policy = policyrouter.PolicyConfig{Driver: policyrouter.DriverFile, Path: policyPath}
			}
			if live {
				cfg.Backends.Mode = policyrouter.ModeLive
			}

			rt, err := policyrouter.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			req := policyrouter.Request{Task: task, Profile: profile}
			if cmd.Flags().Changed("latency-sla-ms") || cmd.Flags().Changed("budget-cents") || cmd.Flags().Changed("safety") {
				latency, _ := cmd.Flags().GetInt("latency-sla-ms")
				budget, _ := cmd.Flags().GetFloat64("budget-cents")
				safety, _ := cmd.Flags().GetString("safety")
				req.Constraints = &policy.Constraints{LatencySLAMs: latency, BudgetCents: budget, Safety: policy.Safety(safety)}
			}
			if schemaPath != "" {
				schema, err := readSchema(schemaPath)
				if err != nil {
					return err
				}
				req.Metadata = map[string]any{"schema": schema}
			}

			res, err := rt.Route(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("config", "", "router config file (overrides --policy)")
	cmd.Flags().String("policy", "policies/fast-cheap-safe.yaml", "policy document")
	cmd.Flags().Bool("live", false, "call real backends instead of stubs")
	cmd.Flags().String("task", "", "task text (required)")
	cmd.Flags().String("profile", "", "profile name (default: config default_profile)")
	cmd.Flags().Int("latency-sla-ms", policy.DefaultLatencySLAMs, "latency SLA in milliseconds")
	cmd.Flags().Float64("budget-cents", policy.DefaultBudgetCents, "budget in US cents")
	cmd.Flags().String("safety", string(policy.SafetyStandard), "safety level (standard|strict)")
	cmd.Flags().String("schema", "", "JSON Schema file to validate the extraction against")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// --- policy command ---

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage policy documents in a SQL policy store",
	}

	push := &cobra.Command{
		Use:   "push <policy-file>",
		Short: "Validate a policy document and store it",
		Long: `Store a policy document in a SQLite or Postgres policy store under
--name, replacing any previous version. routerd loads it with
policy.driver set to the same driver and name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, _ := cmd.Flags().GetString("driver")
			dsn, _ := cmd.Flags().GetString("dsn")
			name, _ := cmd.Flags().GetString("name")

			raw, err := os.ReadFile(args[0]) //nolint:gosec
			if err != nil {
				return fmt.Errorf("reading policy file: %w", err)
			}
			store, err := policy.OpenStore(driver, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Save(name, raw); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored policy %q (%s)\n", name, driver)
			return nil
		},
	}
	push.Flags().String("driver", "sqlite", "store driver (sqlite|postgres)")
	push.Flags().String("dsn", "", "store DSN (sqlite file path or postgres URL)")
	push.Flags().String("name", "", "document name")
	_ = push.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored policy documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, _ := cmd.Flags().GetString("driver")
			dsn, _ := cmd.Flags().GetString("dsn")
			store, err := policy.OpenStore(driver, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			names, err := store.Names()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No policy documents stored.")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored policy document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, _ := cmd.Flags().GetString("driver")
			dsn, _ := cmd.Flags().GetString("dsn")
			store, err := policy.OpenStore(driver, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted policy %q\n", args[0])
			return nil
		},
	}

	for _, c := range []*cobra.Command{list, del} {
		c.Flags().String("driver", "sqlite", "store driver (sqlite|postgres)")
		c.Flags().String("dsn", "", "store DSN (sqlite file path or postgres URL)")
	}

	cmd.AddCommand(push, list, del)
	return cmd
}

// --- version command ---

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), version.Get())
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "routerctl %s\n", version.String())
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print build metadata as JSON")
	return cmd
}

func readSchema(path string) (any, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	var schema any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return schema, nil
}

// printJSON writes v indented, without HTML escaping.
func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
