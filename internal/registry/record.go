package registry

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Schema tags every container record.
	Schema = "openpype:container-2.0"
	// ContainerID marks a record as a loaded container.
	ContainerID = "pyblish.avalon.container"
)

// Container is one loaded asset in a scene. Fields the bridge does not know
// about are carried in Extra and written back unchanged.
type Container struct {
	Schema         string `json:"schema"`
	ID             string `json:"id"`
	Name           string `json:"name"`
	Namespace      string `json:"namespace"`
	Loader         string `json:"loader"`
	Representation string `json:"representation"`
	ObjectName     string `json:"objectName,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Changes lists the fields Update may rewrite. Nil fields are left alone.
type Changes struct {
	Namespace      *string
	Loader         *string
	Representation *string
}

// Empty reports whether no field would change.
func (c Changes) Empty() bool {
	return c.Namespace == nil && c.Loader == nil && c.Representation == nil
}

var knownKeys = map[string]struct{}{
	"schema": {}, "id": {}, "name": {}, "namespace": {},
	"loader": {}, "representation": {}, "objectName": {},
}

// MarshalJSON writes the known fields followed by any extra fields.
func (c Container) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(knownKeys)+len(c.Extra))
	for key, raw := range c.Extra {
		fields[key] = raw
	}
	fields["schema"] = c.Schema
	fields["id"] = c.ID
	fields["name"] = c.Name
	fields["namespace"] = c.Namespace
	fields["loader"] = c.Loader
	fields["representation"] = c.Representation
	if c.ObjectName != "" {
		fields["objectName"] = c.ObjectName
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a record. A legacy list-valued name is joined with "|".
func (c *Container) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var out Container
	for key, raw := range fields {
		var err error
		switch key {
		case "schema":
			err = json.Unmarshal(raw, &out.Schema)
		case "id":
			err = json.Unmarshal(raw, &out.ID)
		case "name":
			out.Name, err = decodeName(raw)
		case "namespace":
			out.Namespace, err = decodeLoose(raw)
		case "loader":
			out.Loader, err = decodeLoose(raw)
		case "representation":
			out.Representation, err = decodeLoose(raw)
		case "objectName":
			err = json.Unmarshal(raw, &out.ObjectName)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	if out.ObjectName == "" {
		out.ObjectName = out.Name
	}
	*c = out
	return nil
}

// decodeName accepts a string or a list of members.
func decodeName(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var members []any
	if err := json.Unmarshal(raw, &members); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, fmt.Sprint(m))
	}
	return strings.Join(parts, "|"), nil
}

// decodeLoose accepts a string, null or any scalar rendered as text.
func decodeLoose(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return strings.TrimSpace(string(raw)), nil
	}
}
