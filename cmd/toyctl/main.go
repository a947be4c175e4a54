// Command toyctl is the operator CLI for the spec.md §6.2 API server:
// apply a graph, start/list/stop tasks, and push RBAC policy. It talks
// over apiclient.HTTPClient, the same bearer-JWT client the supervisor
// daemon uses to reach the API server — mirroring the teacher's own
// cmd/rig, generalized from a flag.FlagSet-per-subcommand dispatcher
// into a cobra command tree (grounded on linkerd-linkerd2 and
// teranos-QNTX's cobra-based CLIs).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toy-run/toy/apiclient"
	"github.com/toy-run/toy/rbac"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "toyctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TOY")
	v.AutomaticEnv()
	v.BindEnv("api_root", "TOY_API_ROOT")
	v.BindEnv("api_client_user", "TOY_API_CLIENT_USER")
	v.BindEnv("api_client_credential", "TOY_API_CLIENT_CREDENTIAL")
	v.BindEnv("api_client_kid", "TOY_API_CLIENT_KID")

	root := &cobra.Command{
		Use:           "toyctl",
		Short:         "Operate a toy fleet's API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newApplyCommand(v),
		newRunCommand(v),
		newPsCommand(v),
		newStopCommand(v),
		newRoleCommand(v),
	)
	return root
}

// newClient builds an apiclient.HTTPClient from the TOY_API_* environment
// variables spec.md §6.5 documents; every subcommand needs the same
// triple, so this is the one place that reads them.
func newClient(v *viper.Viper) (*apiclient.HTTPClient, error) {
	root := v.GetString("api_root")
	if root == "" {
		return nil, fmt.Errorf("TOY_API_ROOT is not set")
	}
	user := v.GetString("api_client_user")
	if user == "" {
		return nil, fmt.Errorf("TOY_API_CLIENT_USER is not set")
	}
	credPath := v.GetString("api_client_credential")
	if credPath == "" {
		return nil, fmt.Errorf("TOY_API_CLIENT_CREDENTIAL is not set")
	}
	pemBytes, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read TOY_API_CLIENT_CREDENTIAL: %w", err)
	}

	tokens, err := apiclient.NewTokenProvider(user, v.GetString("api_client_kid"), pemBytes)
	if err != nil {
		return nil, fmt.Errorf("load API client credential: %w", err)
	}
	return apiclient.NewHTTPClient(root, tokens), nil
}

func newApplyCommand(v *viper.Viper) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "apply <graph.json>",
		Short: "Store or replace a named graph definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := client.PutGraph(ctx, name, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "graph %q stored\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "graph name to store")
	return cmd
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run <graph-name>",
		Short: "Create a task run against a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			id, err := client.CreateTask(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newPsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List every task running fleet-wide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tasks, err := client.ListTasks(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-28s %-24s %s\n", "TASK ID", "GRAPH", "STARTED")
			for _, t := range tasks {
				fmt.Fprintf(w, "%-28s %-24s %s\n", t.TaskID, t.GraphName, t.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newStopCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Request cancellation of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return client.StopTask(ctx, args[0])
		},
	}
}

func newRoleCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "role",
		Short: "Manage RBAC roles and role bindings",
	}

	var resource, verbsCSV string
	putRole := &cobra.Command{
		Use:   "put <name>",
		Short: "Create or replace a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			role := rbac.Role{
				Name:  args[0],
				Rules: []rbac.Rule{{Resource: resource, Verbs: splitCSV(verbsCSV)}},
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return client.PutRole(ctx, role)
		},
	}
	putRole.Flags().StringVar(&resource, "resource", "", "resource kind this role grants access to (e.g. graphs, tasks)")
	putRole.Flags().StringVar(&verbsCSV, "verbs", "", "comma-separated verbs (e.g. get,list,put)")

	var roleName, subject string
	putBinding := &cobra.Command{
		Use:   "bind <name>",
		Short: "Bind a role to a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			binding := rbac.RoleBinding{Name: args[0], Role: roleName, Subject: subject}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return client.PutRoleBinding(ctx, binding)
		},
	}
	putBinding.Flags().StringVar(&roleName, "role", "", "role name to bind")
	putBinding.Flags().StringVar(&subject, "subject", "", "subject (supervisor name or user) to bind the role to")

	root.AddCommand(putRole, putBinding)
	return root
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
