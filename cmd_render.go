package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bug_stomper/markdown"
)

var renderPlain bool

var renderCmd = &cobra.Command{
	Use:   "render <file.md>",
	Short: "Print the HTML a markdown file renders to",
	Long: `Renders a markdown file with the same renderer the site uses for
questions and answers. Use "-" to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderPlain, "plain", false, "print the plain text used for search instead")
}

func runRender(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	out := markdown.Render(string(data))
	if renderPlain {
		out = markdown.PlainText(string(data))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
