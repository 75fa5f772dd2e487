package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/routine/internal/ir"
)

func TestBus_RoutesByKind(t *testing.T) {
	b := newBus()

	var got []string
	b.subscribe(ir.KindFail, func(ev ir.Event) { got = append(got, "fail:"+ev.Type) })
	b.subscribe(ir.KindSuccess, func(ev ir.Event) { got = append(got, "success:"+ev.Type) })
	b.subscribeAll(func(a ir.Action, _ ir.Object) { got = append(got, "all:"+a.ActionType()) })

	b.publish(ir.Event{Kind: ir.KindFail, Type: "x/FAIL"}, ir.Object{})
	b.publish(hostAction{"app/READY"}, ir.Object{})

	assert.Equal(t, []string{"fail:x/FAIL", "all:x/FAIL", "all:app/READY"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := newBus()

	calls := 0
	first := b.subscribe(ir.KindClear, func(ir.Event) { calls++ })
	b.subscribe(ir.KindClear, func(ir.Event) { calls += 10 })
	all := b.subscribeAll(func(ir.Action, ir.Object) { calls += 100 })

	first()
	all()
	b.publish(ir.Event{Kind: ir.KindClear}, nil)

	assert.Equal(t, 10, calls)
}
