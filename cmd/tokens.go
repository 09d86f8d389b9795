package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/canvas/core/tokens"
)

var tokensUser string

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Read or update a user's design tokens",
}

var tokensGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the user's tokens over the defaults as JSON",
	Args:  cobra.NoArgs,
	RunE:  runTokensGet,
}

var tokensSetCmd = &cobra.Command{
	Use:   "set NAME=VALUE...",
	Short: "Merge token values into the user's tokens",
	Long: `Merge NAME=VALUE pairs into the user's saved tokens. Only known token
names are accepted, for example: canvas tokens set radius=1rem "primary=221 83% 53%"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTokensSet,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensGetCmd)
	tokensCmd.AddCommand(tokensSetCmd)
	tokensCmd.PersistentFlags().StringVar(&tokensUser, "user", "local", "User id")
}

func runTokensGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := tokens.Load(ctx, a.tokens, tokensUser)
	if err != nil {
		return err
	}
	return printJSON(cmd, current)
}

func runTokensSet(cmd *cobra.Command, args []string) error {
	updates, err := parseAssignments(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	merged, err := tokens.Update(ctx, a.tokens, tokensUser, updates)
	if err != nil {
		return err
	}
	return printJSON(cmd, merged)
}

func parseAssignments(args []string) (tokens.DesignTokens, error) {
	out := make(tokens.DesignTokens, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected NAME=VALUE, got %q", arg)
		}
		if !tokens.IsKnown(name) {
			return nil, fmt.Errorf("unknown token %q (known: %s)", name, strings.Join(tokens.Keys(), ", "))
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
