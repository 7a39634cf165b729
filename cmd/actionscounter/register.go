package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	githubadapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/github"
	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/config"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/identity"
)

type registerFlags struct {
	description string
	url         string
	tags        []string
	category    string
	priority    string
	owner       string
	jsonOutput  bool
}

func newRegisterCmd() *cobra.Command {
	var flags registerFlags
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a project in the configured store and print its webhook once",
		Long: `Register a project in the configured store.

The alias and auth token are printed once. Only the token's hash is stored,
so save the token before closing the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.description, "description", "", "project description (markdown)")
	cmd.Flags().StringVar(&flags.url, "url", "", "project URL")
	cmd.Flags().StringSliceVar(&flags.tags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringVar(&flags.category, "category", "", "project category")
	cmd.Flags().StringVar(&flags.priority, "priority", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&flags.owner, "project-owner", "", "project owner")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runRegister(ctx context.Context, out io.Writer, name string, flags registerFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ghClient, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, ghClient, logger)
	if err != nil {
		return err
	}
	defer store.close()

	provider := application.NewDispatcherProvider(nil)
	if cfg.DispatchEvents && ghClient != nil {
		provider.Replace(ghClient)
	}
	projects := application.NewProjectService(store, provider, cfg.AdminPassword, 0, logger)
	registration := application.NewRegistrationService(
		store, projects, provider, identity.Deriver{},
		cfg.RepoOwner, cfg.RepoName, dispatchURL(cfg, ghClient), logger,
	)

	reg, err := registration.Register(ctx, application.RegisterRequest{
		Name:        name,
		Description: flags.description,
		URL:         flags.url,
		Tags:        flags.tags,
		Category:    flags.category,
		Priority:    model.ProjectPriority(flags.priority),
		Owner:       flags.owner,
		Password:    cfg.AdminPassword,
	})
	if err != nil {
		return err
	}

	return printRegistration(out, reg, flags.jsonOutput)
}

func printRegistration(out io.Writer, reg *application.Registration, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"name":    reg.Project.Name,
			"alias":   reg.Alias,
			"token":   reg.Token,
			"webhook": reg.Webhook,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registered %s\n\n", reg.Project.Name)
	fmt.Fprintf(&b, "  alias: %s\n", reg.Alias)
	fmt.Fprintf(&b, "  token: %s  (shown once)\n\n", reg.Token)
	fmt.Fprintf(&b, "%s\n\n", reg.Webhook.Description)
	fmt.Fprintf(&b, "  %s %s\n", reg.Webhook.Method, reg.Webhook.URL)
	for _, k := range []string{"Authorization", "Accept", "Content-Type", "X-Project-Auth"} {
		if v, ok := reg.Webhook.Headers[k]; ok {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}
	fmt.Fprintf(&b, "\n  %s\n", reg.Webhook.Body)

	_, err := io.WriteString(out, b.String())
	return err
}

func newWebhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook <alias> <token>",
		Short: "Send the increment webhook for a project to GitHub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias, token := args[0], args[1]
			if _, ok := identity.ValidateToken(alias, token); !ok {
				return errInvalidPair
			}

			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			client, err := githubadapter.NewClient("", cfg.GitHubAPIURL, cfg.RepoFullName())
			if err != nil {
				return err
			}
			if err := client.SendProjectWebhook(cmd.Context(), alias, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook sent to %s\n", client.DispatchURL())
			return nil
		},
	}
}
