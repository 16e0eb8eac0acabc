// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/doclens-tui/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func exchange(t *testing.T, question, answer string) (*model.Message, *model.Message) {
	t.Helper()
	user := model.NewUserMessage(question)
	assistant := model.NewAssistantMessage()
	assistant.AppendToken(answer)
	assistant.AttachRetrieval([]model.SourceDocument{{Source: "a.pdf", Score: 0.9, HasScore: true}}, "")
	assistant.Finalize("", nil, 0, false)
	return user, assistant
}

func TestSaveTurnAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user, assistant := exchange(t, "What oils are healthy?", "Olive oil.")
	require.NoError(t, store.SaveTurn(ctx, "sess-1", user, assistant))

	msgs, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "What oils are healthy?", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Olive oil.", msgs[1].Content)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, "a.pdf", msgs[1].Sources[0].Source)
}

func TestSaveTurn_AppendsInOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u1, a1 := exchange(t, "first question", "first answer")
	u2, a2 := exchange(t, "second question", "second answer")
	require.NoError(t, store.SaveTurn(ctx, "sess-1", u1, a1))
	require.NoError(t, store.SaveTurn(ctx, "sess-1", u2, a2))

	msgs, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "first question", msgs[0].Content)
	assert.Equal(t, "second answer", msgs[3].Content)
}

func TestList_MostRecentFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u1, a1 := exchange(t, "older", "a")
	require.NoError(t, store.SaveTurn(ctx, "sess-old", u1, a1))
	u2, a2 := exchange(t, "newer", "b")
	require.NoError(t, store.SaveTurn(ctx, "sess-new", u2, a2))
	// Touch the older conversation again; it becomes most recent.
	u3, a3 := exchange(t, "follow-up", "c")
	require.NoError(t, store.SaveTurn(ctx, "sess-old", u3, a3))

	convs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "sess-old", convs[0].SessionID)
	assert.Equal(t, 4, convs[0].Messages)
	assert.Equal(t, "older", convs[0].Title, "title is fixed at creation")
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user, assistant := exchange(t, "q", "a")
	require.NoError(t, store.SaveTurn(ctx, "sess-1", user, assistant))
	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "sess-1"), ErrNotFound)
}

func TestLoad_UnknownSession(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
