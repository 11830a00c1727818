package command

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/canvasmesh-go/internal/cli/config"
	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	serverconfig "github.com/yndnr/canvasmesh-go/internal/server/config"
	"github.com/yndnr/canvasmesh-go/internal/syncengine"
)

// schemaTarget is a type with a published schema. tag names the struct
// tag that carries field names.
type schemaTarget struct {
	value any
	tag   string
	about string
}

var schemaTargets = map[string]schemaTarget{
	"client-message": {&syncengine.ClientMessage{}, "json", "Message a client sends on the sync channel"},
	"connect":        {&syncengine.ConnectMessage{}, "json", "First server message on the sync channel"},
	"push-result":    {&syncengine.PushResultMessage{}, "json", "Server answer to a push"},
	"patch":          {&syncengine.PatchMessage{}, "json", "Changes broadcast to other sessions"},
	"error":          {&syncengine.ErrorMessage{}, "json", "Protocol error message"},
	"snapshot":       {&syncengine.Snapshot{}, "json", "Stored room snapshot"},
	"error-report":   {&domain.ErrorReport{}, "json", "POST /api/log-error body"},
	"server-config":  {serverconfig.Default(), "koanf", "canvasmesh-server configuration file"},
	"cli-config":     {cliconfig.Default(), "yaml", "canvasmesh-cli configuration file"},
}

// SchemaCommand returns the schema command.
func SchemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print the JSON Schema of a wire or configuration format",
		ArgsUsage: "[NAME]",
		Action:    schemaAction,
	}
}

func schemaAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return render(c, schemaIndex())
	}
	s, err := Schema(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type schemaEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func schemaIndex() []schemaEntry {
	out := make([]schemaEntry, 0, len(schemaTargets))
	for name, t := range schemaTargets {
		out = append(out, schemaEntry{Name: name, Description: t.about})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema reflects the schema called name.
func Schema(name string) (*jsonschema.Schema, error) {
	t, ok := schemaTargets[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (see `canvasmesh-cli schema`)", name)
	}
	r := &jsonschema.Reflector{
		FieldNameTag:              t.tag,
		AllowAdditionalProperties: t.tag == "json",
		DoNotReference:            true,
	}
	s := r.Reflect(t.value)
	s.Description = t.about
	return s, nil
}
