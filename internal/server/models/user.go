// Package models holds the row structs of the members schema and the value
// types derived from them.
package models

import (
	"fmt"
	"html"
	"time"
)

// Promotion is the ordered rank of a user. The integer codes are persisted
// and must never be renumbered.
type Promotion int

const (
	PromotionNone      Promotion = 0
	PromotionSteward   Promotion = 1
	PromotionMarshal   Promotion = 2
	PromotionOfficer   Promotion = 3
	PromotionCommissar Promotion = 4
	PromotionDirector  Promotion = 5
	PromotionAdmin     Promotion = 6
)

// ParsePromotion converts a stored code, rejecting unknown values.
func ParsePromotion(code int) (Promotion, error) {
	p := Promotion(code)
	if p < PromotionNone || p > PromotionAdmin {
		return PromotionNone, fmt.Errorf("unknown promotion code %d", code)
	}
	return p, nil
}

// Label is the human readable rank; the lowest rank has no label.
func (p Promotion) Label() string {
	switch p {
	case PromotionSteward:
		return "Steward"
	case PromotionMarshal:
		return "Marshal"
	case PromotionOfficer:
		return "Officer"
	case PromotionCommissar:
		return "Commissar"
	case PromotionDirector:
		return "Director"
	case PromotionAdmin:
		return "Administrator"
	}
	return ""
}

// PromotionAuthority says whether a user may only execute their promotion
// or also promote others.
type PromotionAuthority int

const (
	AuthorityExecuting PromotionAuthority = 0
	AuthorityChief     PromotionAuthority = 1
)

// ParsePromotionAuthority converts a stored code, rejecting unknown values.
func ParsePromotionAuthority(code int) (PromotionAuthority, error) {
	switch a := PromotionAuthority(code); a {
	case AuthorityExecuting, AuthorityChief:
		return a, nil
	}
	return AuthorityExecuting, fmt.Errorf("unknown promotion authority code %d", code)
}

func (a PromotionAuthority) Label() string {
	if a == AuthorityChief {
		return "Chief"
	}
	return "Executing"
}

// User is a row of the users table. ID 0 means "not stored yet"; the dummy
// user also has ID 0 and is never stored.
type User struct {
	ID                 int64
	Name               string
	Promotion          Promotion
	PromotionAuthority PromotionAuthority
	LastLap            *time.Time
	LastLogin          *time.Time
}

// DummyUser represents an anonymous caller.
func DummyUser() User {
	return User{Name: "Anonymous"}
}

// HTMLName is the display name escaped for embedding into HTML.
func (u *User) HTMLName() string {
	return html.EscapeString(u.Name)
}

func (u *User) Display() string {
	return fmt.Sprintf("users(id=%d;name=%s)", u.ID, u.Name)
}
