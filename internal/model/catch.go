// Package model defines the data structures shared by the storage, service
// and HTTP layers of the catch log.
package model

import (
	"encoding/json"
	"time"
)

// CatchType says whether a catch came from hunting or fishing.
type CatchType string

const (
	CatchTypeHunting CatchType = "hunting"
	CatchTypeFishing CatchType = "fishing"
)

// CatchTypes lists every accepted catch type, in display order.
func CatchTypes() []CatchType {
	return []CatchType{CatchTypeHunting, CatchTypeFishing}
}

// Valid reports whether t is one of the known catch types.
func (t CatchType) Valid() bool {
	return t == CatchTypeHunting || t == CatchTypeFishing
}

// Catch is one logged hunting or fishing event.
//
// Weight and Notes are optional and serialise as null when unset.
// ID and CreatedAt are assigned by storage on insert and never change.
type Catch struct {
	ID         int64     `json:"id"`
	Species    string    `json:"species"`
	CatchType  CatchType `json:"catch_type"`
	Weight     *float64  `json:"weight"`
	Location   string    `json:"location"`
	DateCaught time.Time `json:"date_caught"`
	Equipment  string    `json:"equipment"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCatch is the payload for creating a catch. The validate tags are checked
// by the service before a Catch is built from it.
type NewCatch struct {
	Species    string     `json:"species"     validate:"required"`
	CatchType  CatchType  `json:"catch_type"  validate:"required,oneof=hunting fishing"`
	Weight     *float64   `json:"weight"      validate:"omitempty,gte=0"`
	Location   string     `json:"location"    validate:"required"`
	DateCaught *Timestamp `json:"date_caught" validate:"required"`
	Equipment  string     `json:"equipment"   validate:"required"`
	Notes      *string    `json:"notes"`
}

// CatchPatch is a partial update. Only fields whose Set flag is true are
// applied; a Set field with Null clears an optional value.
//
// ID, CreatedAt and CatchType are read-only. They are decoded only so the
// service can reject a body that tries to send them; their raw value is
// never looked at.
type CatchPatch struct {
	ID         Optional[json.RawMessage] `json:"id"`
	CreatedAt  Optional[json.RawMessage] `json:"created_at"`
	Species    Optional[string]          `json:"species"`
	CatchType  Optional[CatchType]       `json:"catch_type"`
	Weight     Optional[float64]         `json:"weight"`
	Location   Optional[string]          `json:"location"`
	DateCaught Optional[Timestamp]       `json:"date_caught"`
	Equipment  Optional[string]          `json:"equipment"`
	Notes      Optional[string]          `json:"notes"`
}

// Empty reports whether the patch carries no fields at all.
func (p CatchPatch) Empty() bool {
	return !p.ID.Set && !p.CreatedAt.Set &&
		!p.Species.Set && !p.CatchType.Set && !p.Weight.Set && !p.Location.Set &&
		!p.DateCaught.Set && !p.Equipment.Set && !p.Notes.Set
}

// Stats holds aggregate counts over every stored catch.
type Stats struct {
	Total   int64 `json:"total"`
	Hunting int64 `json:"hunting"`
	Fishing int64 `json:"fishing"`
}
