package helpers

import (
	"context"
	"fmt"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/99souls/routingcore/internal/wdbpool"
)

// RegisterSet registers the "set" transform helper.
func RegisterSet(r *Registry) {
	r.Register("set", func(target, name string, raw []string) (*expr.Term, error) {
		params := document.ParseParameters(raw)
		if err := checkArity(name, params, 1, 1); err != nil {
			return nil, err
		}
		operand := params[0]
		human := humanName(name, target, params)
		return expr.NewTerm(human, func(ev *document.Event) document.Result {
			var v any
			var ok bool
			if operand.IsReference() {
				v, ok = ev.Get("/" + operand.Value)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: "reference operand not found"})
				}
			} else {
				v = operand.Value
			}
			if !ev.Set("/"+target, v) {
				return document.Failure(ev, document.TraceEntry{Message: fmt.Sprintf("%s: intermediate path element is not an object", target)})
			}
			return document.Success(ev)
		}), nil
	})
}

// WorkerKeyFunc supplies the pool-sharding key for the calling worker,
// bound at registry construction time so Term closures stay pure
// Event->Result functions with no worker-identity parameter threaded
// through the expr.Node contract.
type WorkerKeyFunc func() string

// RegisterWdb registers wdb_update and wdb_query, both backed by pool.
// doReturnPayload mirrors opBuilderWdbSyncGenericQuery's single shared
// implementation parameterized by a bool, rather than duplicating the
// query/response handling between the two helpers.
func RegisterWdb(r *Registry, pool *wdbpool.Pool, workerKey WorkerKeyFunc) {
	register := func(helperName string, doReturnPayload bool) {
		r.Register(helperName, func(target, name string, raw []string) (*expr.Term, error) {
			params := document.ParseParameters(raw)
			if err := checkArity(name, params, 1, 1); err != nil {
				return nil, err
			}
			operand := params[0]
			human := humanName(helperName, target, params)
			return expr.NewTerm(human, func(ev *document.Event) document.Result {
				query, ok := resolveOperand(operand, ev)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: fmt.Sprintf("%s: query operand not found", target)})
				}
				if query == "" {
					return document.Failure(ev, document.TraceEntry{Message: fmt.Sprintf("%s: query is empty", target)})
				}

				res, err := pool.Query(context.Background(), workerKey(), query)
				if err != nil {
					// network errors never throw — they surface as Failure traces.
					return document.Failure(ev, document.TraceEntry{Message: err.Error()})
				}

				if doReturnPayload {
					if res.Code == wdbpool.ResultOK {
						ev.Set("/"+target, res.Payload)
						return document.Success(ev)
					}
					return document.Failure(ev, document.TraceEntry{Message: "wdb query did not return OK"})
				}
				ev.Set("/"+target, res.Code == wdbpool.ResultOK)
				return document.Success(ev)
			}), nil
		})
	}
	register("wdb_update", false)
	register("wdb_query", true)
}
