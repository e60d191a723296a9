package event_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/filemanager/pkg/event"
)

func TestFireRunsListenersInOrder(t *testing.T) {
	d := event.New()
	var got []string
	d.Listen("item.created", func(p any) { got = append(got, "a:"+p.(string)) })
	d.Listen("item.created", func(p any) { panic("listener bug") })
	d.Listen("item.created", func(p any) { got = append(got, "b:"+p.(string)) })
	d.Listen("item.deleted", func(p any) { got = append(got, "wrong") })

	d.Fire("item.created", "x")

	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestFireAsync(t *testing.T) {
	d := event.New()
	var wg sync.WaitGroup
	wg.Add(2)
	d.Listen("e", func(any) { wg.Done() })
	d.Listen("e", func(any) { wg.Done() })

	d.FireAsync("e", nil)
	wg.Wait()
}

func TestNilDispatcherAndFlush(t *testing.T) {
	var nilD *event.Dispatcher
	nilD.Fire("e", nil)

	d := event.New()
	called := false
	d.Listen("e", func(any) { called = true })
	d.Flush()
	d.Fire("e", nil)
	assert.False(t, called)
}
