package studio

import (
	"context"
	"strings"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/auth"
)

// Budget tiers reported by script analysis.
const (
	BudgetMicro = "micro"
	BudgetLow   = "low"
	BudgetMid   = "mid"
	BudgetHigh  = "high"
)

// Scene is one scene of a script breakdown.
type Scene struct {
	Number     int      `json:"number"`
	Heading    string   `json:"heading"`
	Summary    string   `json:"summary"`
	Characters []string `json:"characters"`
}

// Character is a speaking role found in the script.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ScriptAnalysis is the breakdown of a screenplay.
type ScriptAnalysis struct {
	Logline             string      `json:"logline"`
	Genre               string      `json:"genre"`
	Scenes              []Scene     `json:"scenes"`
	Characters          []Character `json:"characters"`
	Locations           []string    `json:"locations"`
	EstimatedBudgetTier string      `json:"estimated_budget_tier"`
}

var scriptSchema = ai.MustSchema("script analysis", `{
	"type": "object",
	"required": ["logline", "genre", "scenes", "characters", "locations", "estimated_budget_tier"],
	"properties": {
		"logline": {"type": "string"},
		"genre": {"type": "string"},
		"scenes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["number", "heading"],
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"heading": {"type": "string"},
					"summary": {"type": "string"},
					"characters": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"characters": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"}
				}
			}
		},
		"locations": {"type": "array", "items": {"type": "string"}},
		"estimated_budget_tier": {"enum": ["micro", "low", "mid", "high"]}
	}
}`)

const scriptPrompt = `You are a first assistant director breaking down a screenplay.
Return one JSON object with these keys:
logline (one sentence), genre, scenes (array of {number, heading, summary, characters}),
characters (array of {name, description}), locations (distinct sluglines without INT./EXT.),
estimated_budget_tier (one of "micro", "low", "mid", "high").
Use only what the script supports. Do not invent scenes.`

// AnalyzeScript breaks a screenplay down into scenes, characters and
// locations.
func (s *Service) AnalyzeScript(ctx context.Context, actor auth.Actor, text string) (ScriptAnalysis, error) {
	if err := s.begin(ctx, actor); err != nil {
		return ScriptAnalysis{}, err
	}
	text, err := cleanText(text)
	if err != nil {
		return ScriptAnalysis{}, err
	}

	var out ScriptAnalysis
	if err := s.completeJSON(ctx, actor, ai.TaskScriptAnalysis, scriptPrompt, text, scriptSchema, &out); err != nil {
		return ScriptAnalysis{}, err
	}
	out.Locations = dedupe(out.Locations)
	if out.Scenes == nil {
		out.Scenes = []Scene{}
	}
	if out.Characters == nil {
		out.Characters = []Character{}
	}
	return out, nil
}

// dedupe drops blanks and case-insensitive repeats, keeping first spelling.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
