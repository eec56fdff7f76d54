package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/elvagent/internal/config"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

var (
	openPRHead  string
	openPRBase  string
	openPRTitle string
	openPRBody  string
	openPRDraft bool
)

var openPRCmd = &cobra.Command{
	Use:   "open-pr",
	Short: "Open a pull request on the configured repository",
	Long: `Open-pr creates a pull request from --head into --base. When --body is
omitted the body is the description placeholder, so the agent writes the
description on its next cycle.

Example:
  elvagent open-pr --head feature/x --base main --title "Add feature x"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if openPRHead == "" || openPRBase == "" || openPRTitle == "" {
			return errors.New("--head, --base and --title are required")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		client, err := newGitHubClient(cfg)
		if err != nil {
			return err
		}

		body := openPRBody
		if body == "" {
			body = model.DescriptionPlaceholder
		}

		number, err := client.CreatePullRequest(cmd.Context(), model.NewPullRequest{
			Title: openPRTitle,
			Head:  openPRHead,
			Base:  openPRBase,
			Body:  body,
			Draft: openPRDraft,
		})
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Opened %s#%d\n", cfg.GitHubRepo, number)
		return err
	},
}

func init() {
	openPRCmd.Flags().StringVar(&openPRHead, "head", "", "Branch containing the changes")
	openPRCmd.Flags().StringVar(&openPRBase, "base", "", "Branch to merge into")
	openPRCmd.Flags().StringVar(&openPRTitle, "title", "", "Pull request title")
	openPRCmd.Flags().StringVar(&openPRBody, "body", "", "Pull request body (defaults to the description placeholder)")
	openPRCmd.Flags().BoolVar(&openPRDraft, "draft", false, "Open as a draft")
}
