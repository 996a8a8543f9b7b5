package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stylist is the staff member a booking is assigned to.
type Stylist struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name.
func (s Stylist) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StylistRef is either a bare stylist id or a resolved stylist.
type StylistRef struct {
	id       string
	resolved *Stylist
}

// UnresolvedStylist references a stylist by id only.
func UnresolvedStylist(id any) StylistRef {
	return StylistRef{id: CanonicalID(id)}
}

// ResolvedStylist references a fully loaded stylist.
func ResolvedStylist(s Stylist) StylistRef {
	s.ID = CanonicalID(s.ID)
	return StylistRef{id: s.ID, resolved: &s}
}

// ID returns the canonical stylist id for either variant.
func (r StylistRef) ID() string {
	return r.id
}

// Resolved returns the stylist when the reference is resolved.
func (r StylistRef) Resolved() (Stylist, bool) {
	if r.resolved == nil {
		return Stylist{}, false
	}
	return *r.resolved, true
}

// MarshalJSON encodes the id and, when known, the resolved stylist.
func (r StylistRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string   `json:"id"`
		Stylist *Stylist `json:"stylist,omitempty"`
	}{ID: r.id, Stylist: r.resolved})
}

// Client is a registered salon client.
type Client struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type clientKind int

const (
	clientAbsent clientKind = iota
	clientManual
	clientResolved
)

// ClientRef is a manual client name, a resolved client, or nothing.
type ClientRef struct {
	kind     clientKind
	manual   string
	resolved Client
}

// ManualClient references a walk-in client typed in by name.
func ManualClient(name string) ClientRef {
	return ClientRef{kind: clientManual, manual: name}
}

// ResolvedClient references a registered client.
func ResolvedClient(c Client) ClientRef {
	c.ID = CanonicalID(c.ID)
	return ClientRef{kind: clientResolved, resolved: c}
}

// NoClient is the absent client.
func NoClient() ClientRef {
	return ClientRef{}
}

// ManualName returns the manual name, if this is a manual client.
func (r ClientRef) ManualName() (string, bool) {
	return r.manual, r.kind == clientManual
}

// Resolved returns the client, if this is a resolved client.
func (r ClientRef) Resolved() (Client, bool) {
	return r.resolved, r.kind == clientResolved
}

// MarshalJSON encodes whichever variant is set.
func (r ClientRef) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case clientManual:
		return json.Marshal(struct {
			ManualName string `json:"manual_name"`
		}{r.manual})
	case clientResolved:
		return json.Marshal(struct {
			Client Client `json:"client"`
		}{r.resolved})
	default:
		return []byte("null"), nil
	}
}

// CanonicalID converts identifiers of any underlying representation to the
// string form used for comparisons.
func CanonicalID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case fmt.Stringer:
		return strings.TrimSpace(id.String())
	default:
		return strings.TrimSpace(fmt.Sprint(id))
	}
}
