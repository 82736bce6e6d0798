package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event. Lower values are coarser.
type Scope uint8

const (
	ScopeSession Scope = iota + 1 // CLI command / session lifetime
	ScopePass                     // load, compose, link, codegen
	ScopeTarget                   // per-target layout and binding extraction
	ScopeEntity                   // per-entity layout computation
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopePass:
		return "pass"
	case ScopeTarget:
		return "target"
	case ScopeEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // "link", "layout:vulkan", "entity:lighting.Light"
	Detail   string
	Extra    map[string]string
}
