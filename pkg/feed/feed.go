// Package feed turns a session's raw ordered message log into the display
// feed: date-separator entries between calendar days and avatar-grouping
// decisions for runs of messages from the same sender.
//
// Build is pure and deterministic. Each message snapshot is a full-state
// replacement, so the feed is recomputed from scratch every time instead of
// patched incrementally.
package feed

import (
	"fmt"
	"time"

	"campus-market-be/internal/entity"
)

type ItemKind string

const (
	KindDateSeparator ItemKind = "date_separator"
	KindMessage       ItemKind = "message"
)

type Item struct {
	Kind  ItemKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	Message    *entity.Message `json:"message,omitempty"`
	Mine       bool            `json:"mine,omitempty"`
	ShowAvatar bool            `json:"show_avatar,omitempty"`
}

var weekdayNames = [...]string{
	"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi",
}

// DateLabel renders the separator text for a message timestamp: "Bugün",
// "Dün", the weekday name when less than a week old, otherwise dd.MM.yyyy.
// The calendar day is taken in now's location.
func DateLabel(sentAt int64, now time.Time) string {
	day := time.UnixMilli(sentAt).In(now.Location())

	diffDays := daysBetween(day, now)
	switch {
	case diffDays <= 0:
		return "Bugün"
	case diffDays == 1:
		return "Dün"
	case diffDays < 7:
		return weekdayNames[day.Weekday()]
	default:
		return fmt.Sprintf("%02d.%02d.%d", day.Day(), int(day.Month()), day.Year())
	}
}

// Build transforms the ordered message log into feed items: one separator
// per contiguous calendar-day group, then the group's messages with
// ShowAvatar set exactly on sender-transition boundaries.
func Build(messages []*entity.Message, viewerId string, now time.Time) []Item {
	if len(messages) == 0 {
		return nil
	}

	loc := now.Location()
	items := make([]Item, 0, len(messages)+1)

	var currentDay time.Time
	var prevSender string
	for _, msg := range messages {
		day := dayStart(time.UnixMilli(msg.SentAt).In(loc))
		if currentDay.IsZero() || !day.Equal(currentDay) {
			items = append(items, Item{
				Kind:  KindDateSeparator,
				Label: DateLabel(msg.SentAt, now),
			})
			currentDay = day
			prevSender = ""
		}

		items = append(items, Item{
			Kind:       KindMessage,
			Message:    msg,
			Mine:       msg.SenderId == viewerId,
			ShowAvatar: msg.SenderId != prevSender,
		})
		prevSender = msg.SenderId
	}

	return items
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts whole calendar days from a to b. DST makes some local
// days 23 or 25 hours long, so elapsed time between local midnights cannot
// stand in for the date difference; both dates are re-anchored in UTC where
// every day is exactly 24 hours.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
