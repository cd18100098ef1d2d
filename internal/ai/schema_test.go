package ai_test

import (
	"testing"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/apperr"
)

var shotSchema = ai.MustSchema("shot", `{
	"type": "object",
	"required": ["shot", "lens"],
	"properties": {
		"shot": {"type": "string", "minLength": 1},
		"lens": {"type": "integer", "minimum": 8}
	}
}`)

type shot struct {
	Shot string `json:"shot"`
	Lens int    `json:"lens"`
}

func TestSchema_Decode(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    shot
		wantErr bool
	}{
		{"bare", `{"shot":"close-up","lens":85}`, shot{"close-up", 85}, false},
		{"fenced", "```json\n{\"shot\":\"wide\",\"lens\":24}\n```", shot{"wide", 24}, false},
		{"prose around", `Sure! {"shot":"insert","lens":100} Hope this helps.`, shot{"insert", 100}, false},
		{"missing field", `{"shot":"wide"}`, shot{}, true},
		{"wrong type", `{"shot":"wide","lens":"24mm"}`, shot{}, true},
		{"below minimum", `{"shot":"wide","lens":2}`, shot{}, true},
		{"no json", `I cannot help with that.`, shot{}, true},
		{"truncated", `{"shot":"wide","lens":`, shot{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got shot
			err := shotSchema.Decode(tt.reply, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if apperr.KindOf(err) != apperr.KindUpstream {
					t.Errorf("kind = %v, want upstream", apperr.KindOf(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMustSchema_PanicsOnBadSchema(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustSchema() did not panic")
		}
	}()
	ai.MustSchema("broken", `{"type": 12}`)
}
