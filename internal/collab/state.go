// Package collab keeps the latest menu, table and inventory state forwarded
// by peers. None of it is owned here; the last payload received wins.
package collab

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/shopspring/decimal"
)

type Dish struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dishes []Dish `json:"dishes"`
}

type Menu struct {
	Categories []Category `json:"categories"`
}

// MenuDish is a dish resolved together with its category name.
type MenuDish struct {
	Dish
	Category string
}

type State struct {
	mu        sync.RWMutex
	menu      Menu
	tables    json.RawMessage
	inventory json.RawMessage
}

func NewState() *State {
	return &State{menu: Menu{Categories: []Category{}}}
}

// Forward stores a peer payload. Menu payloads must decode; tables and
// inventory are kept verbatim.
func (s *State) Forward(msgType enums.SyncMessageType, payload json.RawMessage) error {
	switch msgType {
	case enums.SyncMessageTypeMenuUpdated:
		var menu Menu
		if err := json.Unmarshal(payload, &menu); err != nil {
			return fmt.Errorf("decode menu: %w", err)
		}
		s.SetMenu(menu)
	case enums.SyncMessageTypeTableUpdated:
		s.mu.Lock()
		s.tables = append(json.RawMessage(nil), payload...)
		s.mu.Unlock()
	case enums.SyncMessageTypeInventoryUpdated:
		s.mu.Lock()
		s.inventory = append(json.RawMessage(nil), payload...)
		s.mu.Unlock()
	default:
		return fmt.Errorf("%s is not collaborator state", msgType)
	}
	return nil
}

func (s *State) SetMenu(menu Menu) {
	if menu.Categories == nil {
		menu.Categories = []Category{}
	}
	s.mu.Lock()
	s.menu = menu
	s.mu.Unlock()
}

func (s *State) Menu() Menu {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Menu{Categories: make([]Category, len(s.menu.Categories))}
	for i, cat := range s.menu.Categories {
		cat.Dishes = append([]Dish(nil), cat.Dishes...)
		out.Categories[i] = cat
	}
	return out
}

func (s *State) Tables() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(json.RawMessage(nil), s.tables...)
}

func (s *State) Inventory() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(json.RawMessage(nil), s.inventory...)
}

// LookupDish finds a dish by id, falling back to a case-insensitive name match.
func (s *State) LookupDish(ref string) (MenuDish, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cat := range s.menu.Categories {
		for _, dish := range cat.Dishes {
			if dish.ID == ref {
				return MenuDish{Dish: dish, Category: cat.Name}, true
			}
		}
	}
	for _, cat := range s.menu.Categories {
		for _, dish := range cat.Dishes {
			if strings.EqualFold(dish.Name, ref) {
				return MenuDish{Dish: dish, Category: cat.Name}, true
			}
		}
	}
	return MenuDish{}, false
}
