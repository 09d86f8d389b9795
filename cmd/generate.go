package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/tokens"
)

var (
	genPrompt     string
	genName       string
	genProvider   string
	genUser       string
	genOut        string
	genAPIKey     string
	genCompatible bool
	genNoRender   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a component and render it in the sandbox",
	Long: `Ask the configured providers for a component, print the sanitized source
(or write it to --out), then render it once with the user's tokens.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genPrompt, "prompt", "", "What to build")
	generateCmd.Flags().StringVar(&genName, "name", studio.DefaultComponentName, "Component name")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "Provider to try first: openai, gemini or claude")
	generateCmd.Flags().StringVar(&genUser, "user", "local", "User whose tokens ground the prompt")
	generateCmd.Flags().StringVar(&genOut, "out", "", "Write the sanitized source to this file")
	generateCmd.Flags().StringVar(&genAPIKey, "api-key", "", "Credential for the requested provider, for this call only")
	generateCmd.Flags().BoolVar(&genCompatible, "compatible", true, "Ask for code that runs without imports")
	generateCmd.Flags().BoolVar(&genNoRender, "no-render", false, "Skip the sandbox render")
	_ = generateCmd.MarkFlagRequired("prompt")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.studio.GenerateCode(ctx, genUser, studio.CodeRequest{
		Prompt:     genPrompt,
		Name:       genName,
		Provider:   genProvider,
		Compatible: genCompatible,
		APIKey:     genAPIKey,
	})
	if err != nil {
		return err
	}
	a.logger.Info("component generated", "name", res.Name, "provider", res.Provider)

	out := cmd.OutOrStdout()
	if genOut != "" {
		if err := os.WriteFile(genOut, []byte(res.Source+"\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", genOut, err)
		}
	} else {
		fmt.Fprintln(out, res.Source)
	}
	if genNoRender {
		return nil
	}

	current, err := tokens.Load(ctx, a.tokens, genUser)
	if err != nil {
		return err
	}
	return printOutcome(cmd, a.engine.Run(ctx, res.Source, current))
}
