package hub

// IoT Plug and Play conventions shared by the twin and telemetry code.
const (
	// ComponentMarkerKey and ComponentMarkerValue tag a twin section as a
	// component rather than a plain object property.
	ComponentMarkerKey   = "__t"
	ComponentMarkerValue = "c"
)

// ComponentProperties wraps reported properties for a component:
//
//	{"dht11": {"__t": "c", "lastTemp": 21}}
//
// An empty component returns a copy of props for the root interface.
func ComponentProperties(component string, props map[string]any) map[string]any {
	if component == "" {
		out := make(map[string]any, len(props))
		for k, v := range props {
			out[k] = v
		}
		return out
	}

	section := make(map[string]any, len(props)+1)
	section[ComponentMarkerKey] = ComponentMarkerValue
	for k, v := range props {
		section[k] = v
	}
	return map[string]any{component: section}
}

// IsComponentSection reports whether v is a twin object carrying the
// component marker.
func IsComponentSection(v any) (map[string]any, bool) {
	section, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	marker, ok := section[ComponentMarkerKey].(string)
	return section, ok && marker == ComponentMarkerValue
}
