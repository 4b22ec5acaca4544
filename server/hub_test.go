package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youyeongjin90/kimsabu/store"
)

func newTestHub(t *testing.T) (*Hub, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(st, nil, nil)
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub, st
}

func TestHub_CreateSessionOnJoin(t *testing.T) {
	hub, st := newTestHub(t)
	content := sampleContent("마감 완료")
	require.NoError(t, st.Upsert(ctx(), &store.WorkPost{ID: "existing", Title: "데크", Content: content}))

	c := mockClient("c1")
	c.hub = hub
	hub.joinWork <- joinRequest{client: c, workID: "existing"}

	msg := recvMsg(t, c)
	assert.Equal(t, MsgDoc, msg.Type)
	assert.Equal(t, "existing", msg.WorkID)
	assert.Equal(t, content, msg.Content)
	assert.NotNil(t, hub.GetSession("existing"))
}

func TestHub_SecondClientSharesSession(t *testing.T) {
	hub, st := newTestHub(t)
	require.NoError(t, st.Upsert(ctx(), &store.WorkPost{ID: "shared", Title: "대문"}))

	c1, c2 := mockClient("c1"), mockClient("c2")
	hub.joinWork <- joinRequest{client: c1, workID: "shared"}
	recvMsg(t, c1)
	s := hub.GetSession("shared")

	hub.joinWork <- joinRequest{client: c2, workID: "shared"}
	doc := recvMsg(t, c2)
	assert.Len(t, doc.Clients, 2)
	assert.Same(t, s, hub.GetSession("shared"))
}

func TestHub_JoinMissingWork(t *testing.T) {
	hub, _ := newTestHub(t)

	c := mockClient("c1")
	hub.joinWork <- joinRequest{client: c, workID: "missing"}

	msg := recvMsg(t, c)
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "work not found", msg.Message)
	assert.Nil(t, hub.GetSession("missing"))
}

func TestHub_ReloadsAfterSessionEnds(t *testing.T) {
	hub, st := newTestHub(t)
	require.NoError(t, st.Upsert(ctx(), &store.WorkPost{ID: "w", Title: "휀스", Content: sampleContent("처음")}))

	c := mockClient("c1")
	hub.joinWork <- joinRequest{client: c, workID: "w"}
	recvMsg(t, c)
	hub.GetSession("w").leave <- c
	require.Eventually(t, func() bool { return hub.GetSession("w") == nil }, 2*time.Second, 10*time.Millisecond)

	// Content changed outside live editing is picked up by the next session.
	updated := sampleContent("관리자 수정")
	require.NoError(t, st.UpdateContent(ctx(), "w", updated))
	c2 := mockClient("c2")
	hub.joinWork <- joinRequest{client: c2, workID: "w"}
	assert.Equal(t, updated, recvMsg(t, c2).Content)
}
