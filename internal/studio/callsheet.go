package studio

import (
	"context"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/auth"
)

// CallSheetScene is a scene scheduled on the shooting day.
type CallSheetScene struct {
	Number      string   `json:"number"`
	Description string   `json:"description"`
	Pages       string   `json:"pages"`
	Cast        []string `json:"cast"`
}

// CastCall is an actor's call for the day.
type CastCall struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	CallTime string `json:"call_time"`
}

// CrewCall is a crew member's call for the day.
type CrewCall struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	CallTime   string `json:"call_time"`
}

// CallSheet is the structured form of a shooting day's call sheet.
type CallSheet struct {
	Production string           `json:"production"`
	Date       string           `json:"date"`
	CallTime   string           `json:"call_time"`
	Location   string           `json:"location"`
	Scenes     []CallSheetScene `json:"scenes"`
	Cast       []CastCall       `json:"cast"`
	Crew       []CrewCall       `json:"crew"`
	Notes      string           `json:"notes"`
}

var callSheetSchema = ai.MustSchema("call sheet", `{
	"type": "object",
	"required": ["production", "date", "call_time", "location", "scenes", "cast", "crew"],
	"properties": {
		"production": {"type": "string"},
		"date": {"type": "string"},
		"call_time": {"type": "string"},
		"location": {"type": "string"},
		"scenes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["number"],
				"properties": {
					"number": {"type": "string"},
					"description": {"type": "string"},
					"pages": {"type": "string"},
					"cast": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"cast": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string"},
					"role": {"type": "string"},
					"call_time": {"type": "string"}
				}
			}
		},
		"crew": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string"},
					"department": {"type": "string"},
					"call_time": {"type": "string"}
				}
			}
		},
		"notes": {"type": "string"}
	}
}`)

const callSheetPrompt = `You are a second assistant director. Extract the call sheet from the text.
Return one JSON object with keys production, date (YYYY-MM-DD when known), call_time (HH:MM, 24h),
location, scenes (array of {number, description, pages, cast}), cast (array of {name, role, call_time}),
crew (array of {name, department, call_time}) and notes. Use empty strings for unknown values.`

// ParseCallSheet extracts a structured call sheet from free text.
func (s *Service) ParseCallSheet(ctx context.Context, actor auth.Actor, text string) (CallSheet, error) {
	if err := s.begin(ctx, actor); err != nil {
		return CallSheet{}, err
	}
	text, err := cleanText(text)
	if err != nil {
		return CallSheet{}, err
	}

	var out CallSheet
	if err := s.completeJSON(ctx, actor, ai.TaskCallSheet, callSheetPrompt, text, callSheetSchema, &out); err != nil {
		return CallSheet{}, err
	}
	return out, nil
}
