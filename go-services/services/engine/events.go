package engine

type EventType int

const (
	EventEntry EventType = iota
	EventExit
	EventForcedExit
)

func (t EventType) String() string {
	switch t {
	case EventEntry:
		return "entry"
	case EventExit:
		return "exit"
	case EventForcedExit:
		return "forced_exit"
	}
	return "unknown"
}

type Event struct {
	Ts      int64
	Index   int
	Type    EventType
	Symbol  string
	Price   float64
	Details map[string]string
}

type EventLog struct {
	Events []Event
}

func (l *EventLog) Append(e Event) { l.Events = append(l.Events, e) }

// ByIndex returns the events recorded at tick i.
func (l *EventLog) ByIndex(i int) []Event {
	var out []Event
	for _, e := range l.Events {
		if e.Index == i {
			out = append(out, e)
		}
	}
	return out
}
