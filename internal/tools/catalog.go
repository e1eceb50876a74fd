package tools

// Catalog returns the canonical device-control tool specs exposed to the
// model, grounded on tools/mobile/*.py in the original source (spec.md
// §4.6). Schemas accept a Target object to drive the resource_id →
// coordinates → text fallback chain described in spec.md §9.
func Catalog() []Spec {
	return []Spec{
		{
			Name:        "tap",
			Description: "Tap a UI element identified by resource id, text, or coordinates.",
			Schema:      []byte(targetOnlySchema),
		},
		{
			Name:        "long_press_on",
			Description: "Long-press a UI element identified by resource id, text, or coordinates.",
			Schema:      []byte(targetOnlySchema),
		},
		{
			Name:        "swipe",
			Description: "Swipe the screen, either between two points/percentages or in a cardinal direction.",
			Schema:      []byte(swipeSchema),
		},
		{
			Name:        "focus_and_input_text",
			Description: "Focus a UI element and type text into it.",
			Schema:      []byte(inputTextSchema),
		},
		{
			Name:        "focus_and_clear_text",
			Description: "Focus a UI element and clear its current text content.",
			Schema:      []byte(targetOnlySchema),
		},
		{
			Name:        "erase_one_char",
			Description: "Erase a single character at the current cursor position.",
			Schema:      []byte(`{"type":"object","properties":{},"additionalProperties":false}`),
		},
		{
			Name:        "launch_app",
			Description: "Launch an app identified by its human-readable name.",
			Schema:      []byte(`{"type":"object","required":["app_name"],"properties":{"app_name":{"type":"string"}},"additionalProperties":false}`),
		},
		{
			Name:        "stop_app",
			Description: "Stop an app identified by its human-readable name, or the current foreground app if omitted.",
			Schema:      []byte(`{"type":"object","properties":{"app_name":{"type":"string"}},"additionalProperties":false}`),
		},
		{
			Name:        "open_link",
			Description: "Open a URL or deep link.",
			Schema:      []byte(`{"type":"object","required":["url"],"properties":{"url":{"type":"string"}},"additionalProperties":false}`),
		},
		{
			Name:        "back",
			Description: "Press the platform back button.",
			Schema:      []byte(`{"type":"object","properties":{},"additionalProperties":false}`),
		},
		{
			Name:        "press_key",
			Description: "Press a named hardware/software key (Enter, Home, Back).",
			Schema:      []byte(`{"type":"object","required":["key"],"properties":{"key":{"type":"string","enum":["Enter","Home","Back"]}},"additionalProperties":false}`),
		},
		{
			Name:        "wait_for_delay",
			Description: "Wait for a fixed number of milliseconds before continuing.",
			Schema:      []byte(`{"type":"object","required":["delay_ms"],"properties":{"delay_ms":{"type":"integer","minimum":0}},"additionalProperties":false}`),
		},
	}
}

const targetSchemaProperties = `
		"resource_id": {"type":"string"},
		"resource_id_index": {"type":"integer"},
		"text": {"type":"string"},
		"text_index": {"type":"integer"},
		"x": {"type":"integer"},
		"y": {"type":"integer"}`

const targetOnlySchema = `{
	"type":"object",
	"properties": {` + targetSchemaProperties + `
	},
	"additionalProperties": false
}`

const inputTextSchema = `{
	"type":"object",
	"required": ["text"],
	"properties": {
		"text": {"type":"string"},` + targetSchemaProperties + `
	},
	"additionalProperties": false
}`

const swipeSchema = `{
	"type":"object",
	"properties": {
		"direction": {"type":"string","enum":["UP","DOWN","LEFT","RIGHT"]},
		"start_x": {"type":"integer"},
		"start_y": {"type":"integer"},
		"end_x": {"type":"integer"},
		"end_y": {"type":"integer"},
		"start_x_percent": {"type":"number"},
		"start_y_percent": {"type":"number"},
		"end_x_percent": {"type":"number"},
		"end_y_percent": {"type":"number"},
		"duration_ms": {"type":"integer","minimum":0}
	},
	"additionalProperties": false
}`
