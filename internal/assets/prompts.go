// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded
// at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- System instructions ---

// ScoresSystemPrompt frames the basic outfit scoring call.
const ScoresSystemPrompt = "You are a fashion analysis assistant."

// DetailsSystemPrompt frames the itemized analysis call.
const DetailsSystemPrompt = "You are an expert fashion analysis AI providing detailed, structured JSON output."

// SuggestionsSystemPrompt frames the style suggestion call.
const SuggestionsSystemPrompt = "You are a fashion stylist assistant."

// --- Static prompts (no dynamic data) ---

// OutfitScoresPrompt asks for the basic score shape: category and style
// attribute vectors, color analysis, and the three auxiliary scores.
//
//go:embed prompts/outfit-scores.txt
var OutfitScoresPrompt string

// OutfitDetailsPrompt asks for the itemized analysis shape.
//
//go:embed prompts/outfit-details.txt
var OutfitDetailsPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/style-suggestions.txt
var styleSuggestionsTemplate string

// Pre-parsed template. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var suggestionsPromptTmpl = template.Must(template.New("suggestions").Parse(styleSuggestionsTemplate))

// suggestionsData holds the dynamic data injected into the suggestions
// prompt template.
type suggestionsData struct {
	Occasion string
}

// RenderStyleSuggestionsPrompt renders the suggestions prompt for the
// given occasion.
func RenderStyleSuggestionsPrompt(occasion string) string {
	var buf bytes.Buffer
	_ = suggestionsPromptTmpl.Execute(&buf, suggestionsData{Occasion: occasion})
	return buf.String()
}
