package studio

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adalundhe/canvas/core/tokens"
)

const designSystemPrompt = `You are a UI design assistant. You adjust the look of an interface (colour, contrast, rounding) only by updating the design tokens listed below, which drive Tailwind through CSS custom properties.
Always answer with JSON only and no prose. The structure is:
{"reply": string, "tokens": Partial<DesignTokens>}
- reply: a short explanation for the user
- tokens: only the keys you want to change and their new values (an HSL triple string, or a rem length for radius). Do not include unchanged keys.

Keys you may update: %s
Value formats:
- colours: "H S%% L%%" (for example "240 5.9%% 10%%")
- radius: a CSS length such as "0.5rem"

Example:
{"reply":"Raised the contrast","tokens":{"background":"0 0%% 100%%","foreground":"240 10%% 3.9%%","primary":"240 5.9%% 10%%"}}
`

const codeSystemPrompt = `You are an experienced frontend engineer. Following the instructions, output a single React client component (TypeScript/TSX) that can be used as is.
Requirements:
- Start with 'use client'
- Define export default function <PascalCaseName>(props: Props)
- Follow Tailwind CSS and this project's design tokens (CSS variables)
- import statements are forbidden so the preview can run the code. Use Button, Input, Textarea and Separator directly as components that already exist globally, or plain HTML
- Do not use external CDNs or extra packages
- Answer with code only (no JSON, explanations, backticks or surrounding text)

Design token HSL values can be referenced as CSS variables such as var(--primary).
For example className="bg-[hsl(var(--card))] text-[hsl(var(--card-foreground))]"`

const compatPrefix = "[Constraint] No imports. Only the provided components (Button, Input, Textarea, Separator) or plain HTML may be used. "

const defaultDesignReply = "Updated the design tokens."

func designPrompt() string {
	return fmt.Sprintf(designSystemPrompt, strings.Join(tokens.Keys(), ", "))
}

func currentTokensPrompt(t tokens.DesignTokens) string {
	data, err := json.Marshal(t)
	if err != nil {
		data = []byte("{}")
	}
	return "Current tokens: " + string(data)
}

func codeUserPrompt(name, prompt string) string {
	return fmt.Sprintf("Component name: %s\nRequirements: %s\nOutput code only. TSX.", name, prompt)
}
