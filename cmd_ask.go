package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bug_stomper/publisher"
)

var (
	askMarkdown string
	askTitle    string
	askTags     []string
	askDraft    bool
	askServer   string
	askEmail    string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Publish a question written in a markdown file",
	Long: `Signs in to a running server, uploads the local images the markdown
file references and posts it as a question.

The password is read from client.password in the config file or the
BUGSTOMPER_PASSWORD environment variable.

Example:
  bugstomper ask --md leak.md --title "Why does my goroutine leak?" --tag go --tag testing`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askMarkdown, "md", "", "path to the markdown file (required)")
	askCmd.Flags().StringVar(&askTitle, "title", "", "question title (required)")
	askCmd.Flags().StringSliceVar(&askTags, "tag", nil, "tag name, repeatable (required)")
	askCmd.Flags().BoolVar(&askDraft, "draft", false, "keep the question unpublished")
	askCmd.Flags().StringVar(&askServer, "server", "", "server base URL (overrides client.base_url)")
	askCmd.Flags().StringVar(&askEmail, "email", "", "account email (overrides client.email)")
	askCmd.MarkFlagRequired("md")
	askCmd.MarkFlagRequired("title")
	askCmd.MarkFlagRequired("tag")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	base := cfg.Client.BaseURL
	if askServer != "" {
		base = askServer
	}
	email := cfg.Client.Email
	if askEmail != "" {
		email = askEmail
	}
	password := cfg.Client.Password
	if env := os.Getenv("BUGSTOMPER_PASSWORD"); env != "" {
		password = env
	}
	if email == "" || password == "" {
		return errors.New("client email and password are required")
	}

	client, err := publisher.New(base, nil, logger.Named("publisher"))
	if err != nil {
		return err
	}
	if err := client.SignIn(ctx, email, password); err != nil {
		return err
	}

	logger.Info("publishing question", zap.String("title", askTitle), zap.String("md", askMarkdown), zap.Strings("tags", askTags))
	res, err := client.PublishQuestion(ctx, publisher.PublishParams{
		MarkdownPath: askMarkdown,
		Title:        askTitle,
		Tags:         askTags,
		Draft:        askDraft,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	return err
}
