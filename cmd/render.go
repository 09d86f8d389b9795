package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/canvas/core/preview"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/sanitize"
	"github.com/adalundhe/canvas/core/tokens"
)

var (
	renderUser     string
	renderDocument bool
)

// errRenderFailed makes the process exit non-zero after the error itself
// has been printed.
var errRenderFailed = errors.New("render failed")

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a component file in the sandbox",
	Long: `Sanitize, transpile and run FILE with the user's tokens, printing the
rendered HTML or the compile or runtime error. With --document the file is
instead emitted as a standalone iframe preview page.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderUser, "user", "local", "User whose tokens are applied")
	renderCmd.Flags().BoolVar(&renderDocument, "document", false, "Print the browser preview document instead of rendering")
}

func runRender(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := tokens.Load(ctx, a.tokens, renderUser)
	if err != nil {
		return err
	}

	if renderDocument {
		script, err := a.transpiler.Transpile(sanitize.Sanitize(string(raw)))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return errRenderFailed
		}
		doc, err := preview.Document(script, current)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	}

	return printOutcome(cmd, a.engine.Run(ctx, string(raw), current))
}

func printOutcome(cmd *cobra.Command, out sandbox.Outcome) error {
	switch {
	case out.Compile != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "compile error:\n%s\n", out.Compile)
		return errRenderFailed
	case out.Err != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "runtime error: %s\n", out.Err.Message)
		return errRenderFailed
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.HTML)
	return nil
}
