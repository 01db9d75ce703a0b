package conquest

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://conquest.local/schemas/"

var (
	schemasOnce sync.Once
	schemas     map[ActionType]*jsonschema.Schema
	schemasErr  error
)

// loadSchemas compiles one payload schema per action type.
func loadSchemas() (map[ActionType]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		types := ActionTypes()
		for _, t := range types {
			name := string(t) + ".schema.json"
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(raw)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		compiled := make(map[ActionType]*jsonschema.Schema, len(types))
		for _, t := range types {
			s, err := c.Compile(schemaBaseURL + string(t) + ".schema.json")
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", t, err)
				return
			}
			compiled[t] = s
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// validatePayload checks the action type is known and its data matches the type's schema.
func validatePayload(a Action) error {
	all, err := loadSchemas()
	if err != nil {
		return malformed("%v", err)
	}
	s, ok := all[a.Type]
	if !ok {
		return malformed("unknown action type %q", a.Type)
	}
	data := a.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return malformed("%s data: %v", a.Type, err)
	}
	if err := s.Validate(v); err != nil {
		return malformed("%s data: %v", a.Type, err)
	}
	return nil
}

// ActionTypes returns every action type the reducer understands.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionPlaceBid, ActionRevealBids, ActionStartYearTurns,
		ActionCollectAndDeploy, ActionPlaceUnit,
		ActionPurchaseCommander, ActionPurchaseSpaceBase,
		ActionPurchaseCard, ActionPlayCard,
		ActionAdvancePhase,
		ActionAttackTerritory, ActionMoveIntoEmpty, ActionConfirmConquest,
		ActionFortifyTerritory,
		ActionExpireDeadline,
	}
}
