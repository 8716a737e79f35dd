package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/playbookflow/internal/domain"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := NewBus()
	_, ch := b.Subscribe()

	ev := NewWorkflowEvent(domain.WorkflowStatusRunning, "started")
	b.Publish(ev)

	select {
	case got := <-ch:
		assert.Equal(t, KindWorkflow, got.Kind)
		assert.Equal(t, "started", got.Content)
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestPublishFansOutToEveryListener(t *testing.T) {
	b := NewBus()
	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	require.Equal(t, 2, b.ListenerCount())

	b.Publish(NewWorkflowEvent(domain.WorkflowStatusEnded, ""))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("listener did not receive event")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.ListenerCount())
}

func TestPublishDropsOnFullListenerQueue(t *testing.T) {
	b := NewBus()
	_, ch := b.Subscribe()

	for i := 0; i < listenerBufferSize+10; i++ {
		b.Publish(NewWorkflowEvent(domain.WorkflowStatusRunning, ""))
	}

	assert.Len(t, ch, listenerBufferSize)
}

func TestNewNodeEventCarriesNodeFields(t *testing.T) {
	n := domain.NewPlaybookNode("a", domain.Playbook{}, "", "")
	n.Status = domain.NodeStatusEnded
	ev := NewNodeEvent(n)

	assert.Equal(t, KindNode, ev.Kind)
	assert.Equal(t, "a", ev.NodeID)
	assert.Equal(t, domain.NodeStatusEnded, ev.NodeStatus)
}
