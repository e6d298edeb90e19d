// Package schema declares relation types for the hypergraph: which roles a
// hyperedge must carry, which roles form its participant key, whether the
// relation can grant exclusivity, and the typed shape of its property bag.
// Validation happens at the store boundary so untyped metadata never reaches
// persisted state.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// PropType is the declared type of a relation property.
type PropType string

const (
	PropString     PropType = "string"
	PropInt        PropType = "int"
	PropFloat      PropType = "float"
	PropBool       PropType = "bool"
	PropTime       PropType = "time"
	PropStringList PropType = "string_list"
)

// PropSpec declares one typed property of a relation.
type PropSpec struct {
	Type     PropType `yaml:"type"`
	Required bool     `yaml:"required"`

	// Enum restricts string properties to a fixed set when non-empty.
	Enum []string `yaml:"enum,omitempty"`
}

// RelationType declares the schema of one hyperedge relation.
type RelationType struct {
	Name          string              `yaml:"name"`
	RequiredRoles []string            `yaml:"required_roles"`
	OptionalRoles []string            `yaml:"optional_roles,omitempty"`
	Props         map[string]PropSpec `yaml:"props,omitempty"`

	// ExclusiveCapable marks relations that can grant exclusivity. Whether a
	// particular edge is exclusive is decided per edge by ExclusiveProp.
	ExclusiveCapable bool `yaml:"exclusive_capable,omitempty"`

	// ExclusiveProp names the string property whose value ExclusiveValue
	// flags an edge as exclusive (e.g. license_type = "exclusive").
	ExclusiveProp  string `yaml:"exclusive_prop,omitempty"`
	ExclusiveValue string `yaml:"exclusive_value,omitempty"`

	// KeyRoles are the roles whose participants form the collision key.
	// Defaults to RequiredRoles when empty.
	KeyRoles []string `yaml:"key_roles,omitempty"`
}

// keyRoles returns the roles forming the participant key.
func (r *RelationType) keyRoles() []string {
	if len(r.KeyRoles) > 0 {
		return r.KeyRoles
	}
	return r.RequiredRoles
}

// IsExclusive reports whether the given edge claims exclusivity under this
// relation type.
func (r *RelationType) IsExclusive(edge *types.Hyperedge) bool {
	if !r.ExclusiveCapable || r.ExclusiveProp == "" {
		return false
	}
	v, ok := edge.Props[r.ExclusiveProp].(string)
	return ok && v == r.ExclusiveValue
}

// Registry holds the known relation types. It is populated once at startup
// (built-ins plus optional YAML overlay) and read-only afterwards, so lookups
// need no locking.
type Registry struct {
	relations map[string]*RelationType
}

// NewRegistry returns a registry seeded with the built-in relation types.
func NewRegistry() *Registry {
	r := &Registry{relations: make(map[string]*RelationType)}
	for _, rt := range builtins() {
		r.relations[rt.Name] = rt
	}
	return r
}

// builtins declares the relation types the catalog always understands.
func builtins() []*RelationType {
	return []*RelationType{
		{
			Name:          "distribution_rights",
			RequiredRoles: []string{"asset", "territory", "platform"},
			OptionalRoles: []string{"licensee"},
			KeyRoles:      []string{"asset", "territory", "platform"},
			Props: map[string]PropSpec{
				"license_type": {Type: PropString, Required: true, Enum: []string{"exclusive", "non_exclusive"}},
				"deal_id":      {Type: PropString},
				"fee":          {Type: PropFloat},
				"currencies":   {Type: PropStringList},
			},
			ExclusiveCapable: true,
			ExclusiveProp:    "license_type",
			ExclusiveValue:   "exclusive",
		},
		{
			Name:          "credited_on",
			RequiredRoles: []string{"person", "asset"},
			Props: map[string]PropSpec{
				"credit":    {Type: PropString, Required: true},
				"character": {Type: PropString},
				"billing":   {Type: PropInt},
			},
		},
		{
			Name:          "available_on",
			RequiredRoles: []string{"asset", "platform"},
			Props: map[string]PropSpec{
				"tier": {Type: PropString},
			},
		},
	}
}

// Get returns the relation type by name.
func (r *Registry) Get(name string) (*RelationType, error) {
	rt, ok := r.relations[name]
	if !ok {
		return nil, &types.SchemaError{Relation: name, Reason: "unknown relation type"}
	}
	return rt, nil
}

// Register adds or replaces a relation type.
func (r *Registry) Register(rt *RelationType) error {
	if rt.Name == "" {
		return &types.SchemaError{Relation: "", Reason: "relation type has no name"}
	}
	if len(rt.RequiredRoles) == 0 {
		return &types.SchemaError{Relation: rt.Name, Reason: "relation type declares no required roles"}
	}
	r.relations[rt.Name] = rt
	return nil
}

// Names returns the registered relation names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.relations))
	for name := range r.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadOverlay reads additional relation types from a YAML file and registers
// them on top of the built-ins.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read relation overlay: %w", err)
	}
	var overlay struct {
		Relations []*RelationType `yaml:"relations"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse relation overlay: %w", err)
	}
	for _, rt := range overlay.Relations {
		if err := r.Register(rt); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a hyperedge against its relation type: required roles
// present, participant roles known, typed properties well formed, and the
// validity interval ordered. Returns SchemaError on the first violation.
func (r *Registry) Validate(edge *types.Hyperedge) error {
	rt, err := r.Get(edge.Relation)
	if err != nil {
		return err
	}

	roles := make(map[string]int)
	for _, p := range edge.Participants {
		if p.NodeID == "" {
			return &types.SchemaError{Relation: rt.Name, Reason: fmt.Sprintf("participant for role %q has no node id", p.Role)}
		}
		roles[p.Role]++
	}
	for _, role := range rt.RequiredRoles {
		if roles[role] == 0 {
			return &types.SchemaError{Relation: rt.Name, Role: role}
		}
	}
	known := make(map[string]bool)
	for _, role := range rt.RequiredRoles {
		known[role] = true
	}
	for _, role := range rt.OptionalRoles {
		known[role] = true
	}
	for role := range roles {
		if !known[role] {
			return &types.SchemaError{Relation: rt.Name, Reason: fmt.Sprintf("undeclared role %q", role)}
		}
	}

	if err := edge.ValidateInterval(); err != nil {
		return &types.SchemaError{Relation: rt.Name, Reason: err.Error()}
	}

	return validateProps(rt, edge.Props)
}

func validateProps(rt *RelationType, props map[string]any) error {
	for name, spec := range rt.Props {
		v, ok := props[name]
		if !ok {
			if spec.Required {
				return &types.SchemaError{Relation: rt.Name, Reason: fmt.Sprintf("missing required property %q", name)}
			}
			continue
		}
		if err := checkPropType(name, spec, v); err != nil {
			return &types.SchemaError{Relation: rt.Name, Reason: err.Error()}
		}
	}
	for name := range props {
		if _, ok := rt.Props[name]; !ok {
			return &types.SchemaError{Relation: rt.Name, Reason: fmt.Sprintf("undeclared property %q", name)}
		}
	}
	return nil
}

func checkPropType(name string, spec PropSpec, v any) error {
	switch spec.Type {
	case PropString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("property %q: expected string", name)
		}
		if len(spec.Enum) > 0 {
			for _, allowed := range spec.Enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("property %q: %q not in enum [%s]", name, s, strings.Join(spec.Enum, ", "))
		}
	case PropInt:
		switch v.(type) {
		case int, int32, int64:
		case float64:
			// JSON decoding delivers numbers as float64.
			if f := v.(float64); f != float64(int64(f)) {
				return fmt.Errorf("property %q: expected integer", name)
			}
		default:
			return fmt.Errorf("property %q: expected integer", name)
		}
	case PropFloat:
		switch v.(type) {
		case float32, float64, int, int64:
		default:
			return fmt.Errorf("property %q: expected number", name)
		}
	case PropBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("property %q: expected bool", name)
		}
	case PropTime:
		switch t := v.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return fmt.Errorf("property %q: expected RFC3339 time: %w", name, err)
			}
		default:
			return fmt.Errorf("property %q: expected time", name)
		}
	case PropStringList:
		switch list := v.(type) {
		case []string:
		case []any:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("property %q: expected list of strings", name)
				}
			}
		default:
			return fmt.Errorf("property %q: expected list of strings", name)
		}
	default:
		return fmt.Errorf("property %q: unknown declared type %q", name, spec.Type)
	}
	return nil
}

// ParticipantKey derives the serialization-point key for an edge: the
// relation name plus the node IDs bound to the relation's key roles, in a
// fixed role order. Two edges with the same key contend for the same write
// lock and are collision candidates.
func (r *Registry) ParticipantKey(edge *types.Hyperedge) (string, error) {
	rt, err := r.Get(edge.Relation)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(rt.Name)
	for _, role := range rt.keyRoles() {
		p := edge.Role(role)
		if p == nil {
			return "", &types.SchemaError{Relation: rt.Name, Role: role}
		}
		sb.WriteByte('|')
		sb.WriteString(role)
		sb.WriteByte('=')
		sb.WriteString(p.NodeID)
	}
	return sb.String(), nil
}
