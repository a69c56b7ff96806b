package document

// TraceEntry is one node's evaluation outcome. Every Term evaluation
// records one; controllers decide whether to return them to the caller.
type TraceEntry struct {
	NodeName string
	Success  bool
	Message  string
}

// Result is the tagged outcome of evaluating one Term or composed
// expression node: Success(event, trace) or Failure(event, trace). The
// event is always returned so downstream composers may continue against
// the original document regardless of outcome.
type Result struct {
	OK    bool
	Event *Event
	Trace []TraceEntry
}

// Success builds a successful Result carrying ev unmodified (or as
// mutated by the Term that produced it).
func Success(ev *Event, trace ...TraceEntry) Result {
	return Result{OK: true, Event: ev, Trace: trace}
}

// Failure builds a failed Result. ev is still returned per §4's Result
// contract — composers decide whether to continue against it.
func Failure(ev *Event, trace ...TraceEntry) Result {
	return Result{OK: false, Event: ev, Trace: trace}
}

// WithTrace appends entry to r's trace and returns the updated Result.
func (r Result) WithTrace(entry TraceEntry) Result {
	r.Trace = append(r.Trace, entry)
	return r
}
