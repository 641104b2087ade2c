package core

import (
	"fmt"
	"strings"

	"github.com/adaptix-labs/botframe/internal/store"
)

// MaxKnowledgeItems is the flat cap on snippets injected per turn. There is
// no relevance ranking; the first N items in insertion order are used.
const MaxKnowledgeItems = 5

// styleInstructions maps a bot's communication style to a prompt fragment.
// Unknown styles contribute nothing rather than failing the turn.
var styleInstructions = map[string]string{
	"formal":   "Communicate in a formal, professional manner.",
	"friendly": "Communicate in a friendly, warm manner.",
	"humorous": "You may use humor in your replies while remaining professional.",
	"expert":   "Communicate as an expert in your field, providing detailed information.",
}

const groundingDirective = "Answer only on the basis of the information provided. " +
	"If the information is insufficient, say so honestly and suggest the user contact a human representative."

// BuildGroundingPrompt assembles the priming instruction sent as the first
// turn of every generation call. It is a pure function of the bot's persona
// fields and the snippets handed to it.
func BuildGroundingPrompt(bot *store.Bot, knowledge []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an AI assistant named %s for the company %s.\n", bot.Name, bot.CompanyName)
	if bot.Industry != "" {
		fmt.Fprintf(&b, "Field of business: %s.\n", bot.Industry)
	}
	if bot.Description != "" {
		fmt.Fprintf(&b, "About the company: %s\n", bot.Description)
	}
	if instruction := styleInstructions[bot.Style]; instruction != "" {
		b.WriteString(instruction)
		b.WriteString("\n")
	}
	if bot.CustomPrompt != "" {
		b.WriteString(bot.CustomPrompt)
		b.WriteString("\n")
	}
	if bot.Language != "" {
		fmt.Fprintf(&b, "Always reply in the language with code %q.\n", bot.Language)
	}

	if len(knowledge) > 0 {
		b.WriteString("\nUse the following information to answer user questions:\n")
		b.WriteString(strings.Join(knowledge, "\n\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(groundingDirective)
	return b.String()
}
