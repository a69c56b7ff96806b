// Package eventtext parses the wire event format external producers
// submit: a queue-type byte, a ':'-delimited location, and a free-form
// payload, mirroring parseWazuhEvent's field layout (queue, origin,
// message) plus optional structured JSON passthrough.
package eventtext

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/routererr"
)

// Parse decodes raw into an Event with top-level fields "queue", "origin",
// and "message". If message itself looks like a JSON object, its fields
// are merged in under "data" as a structured passthrough rather than left
// as an opaque string — read with gjson instead of a full unmarshal since
// only shallow inspection is needed before the fields are copied in.
func Parse(raw string) (*document.Event, error) {
	if raw == "" {
		return nil, routererr.New(routererr.InvalidArgument, "empty event text")
	}
	queue := raw[0:1]
	rest := raw[1:]
	if !strings.HasPrefix(rest, ":") {
		return nil, routererr.New(routererr.InvalidArgument, "missing location delimiter")
	}
	rest = rest[1:]

	locEnd := strings.Index(rest, ":")
	if locEnd < 0 {
		return nil, routererr.New(routererr.InvalidArgument, "missing location delimiter")
	}
	origin := rest[:locEnd]
	message := rest[locEnd+1:]

	ev := document.New()
	ev.Set("/queue", queue)
	ev.Set("/origin", origin)
	ev.Set("/message", message)

	trimmed := strings.TrimSpace(message)
	if len(trimmed) > 0 && trimmed[0] == '{' && gjson.Valid(trimmed) {
		parsed := gjson.Parse(trimmed)
		if parsed.IsObject() {
			data := map[string]any{}
			parsed.ForEach(func(key, value gjson.Result) bool {
				data[key.String()] = value.Value()
				return true
			})
			ev.Set("/data", data)
		}
	}

	return ev, nil
}
