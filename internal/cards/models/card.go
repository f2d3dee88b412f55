// Package models holds the card domain types: cards, operations, filters and
// pages. Cards are read as snapshots by the delivery engine; the persistent
// store owns their lifecycle.
package models

import (
	"time"

	"cardfeed/internal/cards/extract"
)

// PublisherType is the origin of a card.
type PublisherType string

const (
	PublisherExternal PublisherType = "EXTERNAL"
	PublisherEntity   PublisherType = "ENTITY"
	PublisherUser     PublisherType = "USER"
)

// Severity ranks the operational importance of a card.
type Severity string

const (
	SeverityAlarm       Severity = "ALARM"
	SeverityAction      Severity = "ACTION"
	SeverityCompliant   Severity = "COMPLIANT"
	SeverityInformation Severity = "INFORMATION"
)

// TimeSpan is an additional active period of a card.
type TimeSpan struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// RRule describes a repeating activation of a card.
type RRule struct {
	Freq              string   `json:"freq,omitempty"`
	ByHour            []int    `json:"byhour,omitempty"`
	ByMinute          []int    `json:"byminute,omitempty"`
	ByWeekDay         []string `json:"byweekday,omitempty"`
	DurationInMinutes int      `json:"durationInMinutes,omitempty"`
}

// Card is an operational event addressed to users, groups and entities.
// ID is always "process.processInstanceId".
type Card struct {
	UID               string        `json:"uid,omitempty"`
	ID                string        `json:"id,omitempty"`
	Publisher         string        `json:"publisher"`
	PublisherType     PublisherType `json:"publisherType,omitempty"`
	ProcessVersion    string        `json:"processVersion"`
	Process           string        `json:"process"`
	ProcessInstanceID string        `json:"processInstanceId"`
	State             string        `json:"state"`

	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Severity Severity `json:"severity"`

	PublishDate    time.Time  `json:"publishDate"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	TimeSpans      []TimeSpan `json:"timeSpans,omitempty"`
	RRule          *RRule     `json:"rRule,omitempty"`

	UserRecipients        []string `json:"userRecipients,omitempty"`
	GroupRecipients       []string `json:"groupRecipients,omitempty"`
	EntityRecipients      []string `json:"entityRecipients,omitempty"`
	EntitiesAllowedToEdit []string `json:"entitiesAllowedToEdit,omitempty"`

	UsersAcks    []string `json:"usersAcks,omitempty"`
	UsersReads   []string `json:"usersReads,omitempty"`
	EntitiesAcks []string `json:"entitiesAcks,omitempty"`

	ParentCardID         string `json:"parentCardId,omitempty"`
	InitialParentCardUID string `json:"initialParentCardUid,omitempty"`

	Data *extract.Tree `json:"data,omitempty"`
}

// CardID builds the composite card id from its process and instance.
func CardID(process, processInstanceID string) string {
	return process + "." + processInstanceID
}

// ProcessStateKey is the lookup key for perimeter rights.
func (c *Card) ProcessStateKey() string {
	return c.Process + "." + c.State
}

// ActiveWindowOverlaps reports whether the card's main active window
// [StartDate, EndDate] intersects [from, to]. A nil EndDate means the card
// stays active indefinitely; zero bounds mean an open range end.
func (c *Card) ActiveWindowOverlaps(from, to time.Time) bool {
	if !to.IsZero() && c.StartDate.After(to) {
		return false
	}
	if !from.IsZero() && c.EndDate != nil && c.EndDate.Before(from) {
		return false
	}
	return true
}

// Clone returns a deep-enough copy for per-user projection: slice fields are
// copied so overlays never touch the stored snapshot.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	cp.TimeSpans = append([]TimeSpan(nil), c.TimeSpans...)
	cp.UserRecipients = append([]string(nil), c.UserRecipients...)
	cp.GroupRecipients = append([]string(nil), c.GroupRecipients...)
	cp.EntityRecipients = append([]string(nil), c.EntityRecipients...)
	cp.EntitiesAllowedToEdit = append([]string(nil), c.EntitiesAllowedToEdit...)
	cp.UsersAcks = append([]string(nil), c.UsersAcks...)
	cp.UsersReads = append([]string(nil), c.UsersReads...)
	cp.EntitiesAcks = append([]string(nil), c.EntitiesAcks...)
	return &cp
}
