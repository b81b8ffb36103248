package ds

import (
	"fmt"
	"slices"
)

// CongestionControl decides what a publisher does when the transport is
// saturated.
type CongestionControl uint8

const (
	CongestionDrop CongestionControl = iota
	CongestionBlock
	CongestionBlockFirst
)

var congestionNames = []string{"drop", "block", "block_first"}

func (c CongestionControl) String() string { return enumName(congestionNames, int(c)) }

func (c CongestionControl) MarshalText() ([]byte, error) {
	return marshalEnum("congestion control", congestionNames, int(c))
}

func (c *CongestionControl) UnmarshalText(b []byte) error {
	v, err := parseEnum("congestion control", congestionNames, b)
	if err != nil {
		return err
	}
	*c = CongestionControl(v)
	return nil
}

type Priority uint8

const (
	PriorityRealTime Priority = iota
	PriorityInteractiveHigh
	PriorityInteractiveLow
	PriorityDataHigh
	PriorityData
	PriorityDataLow
	PriorityBackground
)

var priorityNames = []string{
	"real_time",
	"interactive_high",
	"interactive_low",
	"data_high",
	"data",
	"data_low",
	"background",
}

func (p Priority) String() string { return enumName(priorityNames, int(p)) }

func (p Priority) MarshalText() ([]byte, error) {
	return marshalEnum("priority", priorityNames, int(p))
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := parseEnum("priority", priorityNames, b)
	if err != nil {
		return err
	}
	*p = Priority(v)
	return nil
}

// QueryTarget selects which matching responders a query is routed to.
type QueryTarget uint8

const (
	TargetBestMatching QueryTarget = iota
	TargetAll
	TargetAllComplete
)

var targetNames = []string{"best_matching", "all", "all_complete"}

func (q QueryTarget) String() string { return enumName(targetNames, int(q)) }

func (q QueryTarget) MarshalText() ([]byte, error) {
	return marshalEnum("query target", targetNames, int(q))
}

func (q *QueryTarget) UnmarshalText(b []byte) error {
	v, err := parseEnum("query target", targetNames, b)
	if err != nil {
		return err
	}
	*q = QueryTarget(v)
	return nil
}

// Consolidation controls how replies for the same key are merged.
type Consolidation uint8

const (
	ConsolidationAuto Consolidation = iota
	ConsolidationNone
	ConsolidationMonotonic
	ConsolidationLatest
)

var consolidationNames = []string{"auto", "none", "monotonic", "latest"}

func (c Consolidation) String() string { return enumName(consolidationNames, int(c)) }

func (c Consolidation) MarshalText() ([]byte, error) {
	return marshalEnum("consolidation", consolidationNames, int(c))
}

func (c *Consolidation) UnmarshalText(b []byte) error {
	v, err := parseEnum("consolidation", consolidationNames, b)
	if err != nil {
		return err
	}
	*c = Consolidation(v)
	return nil
}

// Locality restricts which origins a subscriber or query observes.
// The zero value accepts every origin.
type Locality uint8

const (
	LocalityAny Locality = iota
	LocalitySessionLocal
	LocalityRemote
)

var localityNames = []string{"any", "session_local", "remote"}

func (l Locality) String() string { return enumName(localityNames, int(l)) }

func (l Locality) MarshalText() ([]byte, error) {
	return marshalEnum("locality", localityNames, int(l))
}

func (l *Locality) UnmarshalText(b []byte) error {
	v, err := parseEnum("locality", localityNames, b)
	if err != nil {
		return err
	}
	*l = Locality(v)
	return nil
}

// Accepts reports whether a message from a session with the given id passes
// the filter of a session whose own id is local.
func (l Locality) Accepts(local, origin string) bool {
	switch l {
	case LocalitySessionLocal:
		return origin == local
	case LocalityRemote:
		return origin != local
	default:
		return true
	}
}

// CongestionControls, Priorities, QueryTargets, Consolidations and Localities
// list every value in declaration order, for pickers.
func CongestionControls() []CongestionControl {
	return []CongestionControl{CongestionDrop, CongestionBlock, CongestionBlockFirst}
}

func Priorities() []Priority {
	out := make([]Priority, len(priorityNames))
	for i := range out {
		out[i] = Priority(i)
	}
	return out
}

func QueryTargets() []QueryTarget {
	return []QueryTarget{TargetBestMatching, TargetAll, TargetAllComplete}
}

func Consolidations() []Consolidation {
	return []Consolidation{ConsolidationAuto, ConsolidationNone, ConsolidationMonotonic, ConsolidationLatest}
}

func Localities() []Locality {
	return []Locality{LocalityAny, LocalitySessionLocal, LocalityRemote}
}

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("invalid(%d)", v)
	}
	return names[v]
}

func marshalEnum(kind string, names []string, v int) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, fmt.Errorf("invalid %s %d", kind, v)
	}
	return []byte(names[v]), nil
}

func parseEnum(kind string, names []string, b []byte) (int, error) {
	i := slices.Index(names, string(b))
	if i < 0 {
		return 0, fmt.Errorf("unknown %s %q", kind, string(b))
	}
	return i, nil
}
