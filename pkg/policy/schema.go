package policy

// Kind is the expected type of a policy field.
type Kind string

const (
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindList   Kind = "list"
	KindObject Kind = "object"
)

// FieldSpec describes one schema field: its type, whether it must be
// present, the closed set of accepted values if any, and nested schemas
// for object fields.
type FieldSpec struct {
	Kind     Kind
	Required bool
	Enum     []string
	Default  any

	// Schema validates the named children of an object field.
	Schema map[string]FieldSpec

	// DynamicKeys marks an object whose keys are operator-chosen names
	// (module names, sensor names). Each value is validated against
	// ValueSchema.
	DynamicKeys bool
	ValueSchema map[string]FieldSpec
}

// Schema is the root policy schema. Unknown top-level fields are ignored
// so documents stay forward compatible.
func Schema() map[string]FieldSpec {
	return map[string]FieldSpec{
		"device_id":          {Kind: KindString, Required: true},
		"organization":       {Kind: KindString, Default: ""},
		"deployment_context": {Kind: KindString, Default: ""},

		"mode": {
			Kind:     KindObject,
			Required: true,
			Schema: map[string]FieldSpec{
				"current":             {Kind: KindString, Enum: modeNames()},
				"allowed":             {Kind: KindList, Required: true},
				"switch_requires_key": {Kind: KindBool, Default: true},
				"switch_key_scope":    {Kind: KindString, Default: "mode_control"},
			},
		},

		"modules": {
			Kind:        KindObject,
			Required:    true,
			DynamicKeys: true,
			ValueSchema: map[string]FieldSpec{
				"enabled": {Kind: KindBool, Default: false},
				"loaded":  {Kind: KindBool, Default: false},
			},
		},

		"safety": {
			Kind:     KindObject,
			Required: true,
			Schema: map[string]FieldSpec{
				"require_auditor":            {Kind: KindBool, Default: true},
				"auditor_strict":             {Kind: KindBool, Default: true},
				"skip_auditor_confidence":    {Kind: KindFloat, Default: DefaultSkipAuditorConfidence},
				"allow_override_on_conflict": {Kind: KindBool, Default: false},
				"override_requires_key":      {Kind: KindBool, Default: true},
				"override_key_scope":         {Kind: KindString, Default: "safety_override"},
				"redaction_level": {
					Kind:    KindString,
					Enum:    []string{"none", "minimal", "standard", "strict"},
					Default: "standard",
				},
			},
		},

		"output": {
			Kind:     KindObject,
			Required: true,
			Schema: map[string]FieldSpec{
				"adapt_to_profile":       {Kind: KindBool, Default: true},
				"default_reading_level":  {Kind: KindString, Enum: readingLevelNames(), Default: "general"},
				"default_format":         {Kind: KindString, Default: "conversational"},
				"allow_profile_override": {Kind: KindBool, Default: true},
			},
		},

		"sensors": {
			Kind:        KindObject,
			DynamicKeys: true,
			ValueSchema: map[string]FieldSpec{
				"enabled": {Kind: KindBool, Default: false},
			},
		},

		"network": {
			Kind:        KindObject,
			DynamicKeys: true,
			ValueSchema: map[string]FieldSpec{
				"enabled": {Kind: KindBool, Default: false},
			},
		},

		"remote": {
			Kind: KindObject,
			Schema: map[string]FieldSpec{
				"enabled":    {Kind: KindBool, Default: false},
				"transports": {Kind: KindList, Default: []any{}},
			},
		},

		"audit": {
			Kind:     KindObject,
			Required: true,
			Schema: map[string]FieldSpec{
				"log_queries":      {Kind: KindBool, Default: true},
				"log_responses":    {Kind: KindBool, Default: true},
				"log_overrides":    {Kind: KindBool, Default: true},
				"log_mode_changes": {Kind: KindBool, Default: true},
				"retention_days":   {Kind: KindInt, Default: 365},
			},
		},
	}
}
