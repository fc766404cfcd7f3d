package command

// filterKind distinguishes the three ways a dispatcher selects requests.
type filterKind int

const (
	filterAny filterKind = iota
	filterDeviceWide
	filterComponent
)

// Filter selects which method requests a dispatcher receives.
type Filter struct {
	kind      filterKind
	component string
	method    string
}

// DeviceWide selects requests for method on the root interface.
func DeviceWide(method string) Filter {
	return Filter{kind: filterDeviceWide, method: method}
}

// ComponentScoped selects requests for method on component, addressed as
// "component*method".
func ComponentScoped(component, method string) Filter {
	return Filter{kind: filterComponent, component: component, method: method}
}

// AnyMethod selects every request no other dispatcher claims.
func AnyMethod() Filter {
	return Filter{kind: filterAny}
}

// FilterFor builds a Filter from optional names. Both set gives a component
// filter, method alone a device-wide one. Anything else, including a
// component without a method, selects any method.
func FilterFor(component, method string) Filter {
	switch {
	case component != "" && method != "":
		return ComponentScoped(component, method)
	case method != "":
		return DeviceWide(method)
	default:
		return AnyMethod()
	}
}

// Key is the routing key the connection uses for this filter.
func (f Filter) Key() string {
	switch f.kind {
	case filterComponent:
		return f.component + "*" + f.method
	case filterDeviceWide:
		return f.method
	default:
		return ""
	}
}

// Method returns the method name, empty for AnyMethod.
func (f Filter) Method() string { return f.method }

// Component returns the component name, empty unless component scoped.
func (f Filter) Component() string { return f.component }

// IsAny reports whether f is the wildcard filter.
func (f Filter) IsAny() bool { return f.kind == filterAny }

// String returns the key, or "*" for the wildcard, for logs.
func (f Filter) String() string {
	if f.kind == filterAny {
		return "*"
	}
	return f.Key()
}
