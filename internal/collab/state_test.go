package collab

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const menuPayload = `{"categories":[
	{"id":"c1","name":"Entrées","dishes":[{"id":"d1","name":"Soupe à l'oignon","price":8.5}]},
	{"id":"c2","name":"Plats","dishes":[{"id":"d2","name":"Steak frites","price":"21.00"}]}
]}`

func TestForwardMenuAndLookup(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Forward(enums.SyncMessageTypeMenuUpdated, json.RawMessage(menuPayload)))

	dish, ok := s.LookupDish("d2")
	require.True(t, ok)
	assert.Equal(t, "Steak frites", dish.Name)
	assert.Equal(t, "Plats", dish.Category)
	assert.True(t, dish.Price.Equal(decimal.RequireFromString("21")))

	dish, ok = s.LookupDish("soupe à l'oignon")
	require.True(t, ok)
	assert.Equal(t, "d1", dish.ID)
	assert.True(t, dish.Price.Equal(decimal.RequireFromString("8.5")))

	_, ok = s.LookupDish("missing")
	assert.False(t, ok)
}

func TestForwardRejectsBadMenu(t *testing.T) {
	s := NewState()
	assert.Error(t, s.Forward(enums.SyncMessageTypeMenuUpdated, json.RawMessage(`{"categories":"nope"}`)))
	assert.Empty(t, s.Menu().Categories)
}

func TestForwardKeepsTablesAndInventoryVerbatim(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Forward(enums.SyncMessageTypeTableUpdated, json.RawMessage(`{"count":12}`)))
	require.NoError(t, s.Forward(enums.SyncMessageTypeInventoryUpdated, json.RawMessage(`{"frites":0}`)))
	assert.JSONEq(t, `{"count":12}`, string(s.Tables()))
	assert.JSONEq(t, `{"frites":0}`, string(s.Inventory()))

	assert.Error(t, s.Forward(enums.SyncMessageTypePadSent, json.RawMessage(`{}`)))
}

func TestMenuReturnsCopy(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Forward(enums.SyncMessageTypeMenuUpdated, json.RawMessage(menuPayload)))
	menu := s.Menu()
	menu.Categories[0].Dishes[0].Name = "changed"
	dish, ok := s.LookupDish("d1")
	require.True(t, ok)
	assert.Equal(t, "Soupe à l'oignon", dish.Name)
}
