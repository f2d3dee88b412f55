package store

import (
	"strconv"
	"time"

	cardmodels "cardfeed/internal/cards/models"
)

// matchesFilters applies all declarative filters to a card (AND semantics).
// Column names are validated before evaluation; an unknown column reaching
// this point matches nothing.
func matchesFilters(card *cardmodels.Card, filters []cardmodels.Filter) bool {
	for _, f := range filters {
		if !matchesFilter(card, f) {
			return false
		}
	}
	return true
}

func matchesFilter(card *cardmodels.Card, f cardmodels.Filter) bool {
	switch f.ColumnName {
	case cardmodels.ColumnPublishDateFrom:
		from, ok := parseEpochMillis(f.Values)
		return ok && !card.PublishDate.Before(from)
	case cardmodels.ColumnPublishDateTo:
		to, ok := parseEpochMillis(f.Values)
		return ok && !card.PublishDate.After(to)
	case cardmodels.ColumnActiveFrom:
		from, ok := parseEpochMillis(f.Values)
		if !ok {
			return false
		}
		// A card with no end date stays active and matches any lower bound.
		return card.EndDate == nil || !card.EndDate.Before(from)
	case cardmodels.ColumnActiveTo:
		to, ok := parseEpochMillis(f.Values)
		return ok && !card.StartDate.After(to)
	case "publishDate":
		return matchesDate(card.PublishDate, f)
	case "startDate":
		return matchesDate(card.StartDate, f)
	}

	value, ok := scalarColumn(card, f.ColumnName)
	if !ok {
		return false
	}
	return matchesScalar(value, f)
}

func matchesScalar(value string, f cardmodels.Filter) bool {
	switch f.MatchType {
	case cardmodels.MatchGreaterThan:
		return len(f.Values) == 1 && value > f.Values[0]
	case cardmodels.MatchLessThan:
		return len(f.Values) == 1 && value < f.Values[0]
	default: // EQUALS and IN both accept any listed value
		for _, v := range f.Values {
			if value == v {
				return true
			}
		}
		return false
	}
}

func matchesDate(value time.Time, f cardmodels.Filter) bool {
	bound, ok := parseEpochMillis(f.Values)
	if !ok {
		return false
	}
	switch f.MatchType {
	case cardmodels.MatchGreaterThan:
		return value.After(bound)
	case cardmodels.MatchLessThan:
		return value.Before(bound)
	default:
		return value.Equal(bound)
	}
}

func scalarColumn(card *cardmodels.Card, name string) (string, bool) {
	switch name {
	case "publisher":
		return card.Publisher, true
	case "publisherType":
		return string(card.PublisherType), true
	case "process":
		return card.Process, true
	case "processInstanceId":
		return card.ProcessInstanceID, true
	case "state":
		return card.State, true
	case "severity":
		return string(card.Severity), true
	case "title":
		return card.Title, true
	case "processVersion":
		return card.ProcessVersion, true
	case "parentCardId":
		return card.ParentCardID, true
	default:
		return "", false
	}
}

func parseEpochMillis(values []string) (time.Time, bool) {
	if len(values) != 1 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
