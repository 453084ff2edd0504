package bids

import "strings"

// EntityOrder is the canonical sequence of entity keys used to order the
// key-value tokens of a filename.
type EntityOrder []string

// EntityTableV170 is the entity key table of BIDS v1.7.0.
// https://bids-specification.readthedocs.io/en/v1.7.0/99-appendices/04-entity-table.html
var EntityTableV170 = EntityOrder{
	"sub",
	"ses",
	"task",
	"acq",
	"ce",
	"rec",
	"dir",
	"run",
	"mod",
	"echo",
	"flip",
	"inv",
	"mt",
	"part",
	"recording",
}

// DefaultEntityOrder is the table used when none is configured.
var DefaultEntityOrder = EntityTableV170

// entity is a parsed key-value token.
type entity struct {
	key   string
	value string
}

// splitEntity classifies a token. Only tokens with exactly one '-' and two
// non-empty halves are entities; "acq-mp-rage" is a suffix token.
func splitEntity(token string) (entity, bool) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return entity{}, false
	}
	return entity{key: parts[0], value: parts[1]}, true
}

// OrderName rewrites an underscore-joined name so that entities appear in
// the order of the table, followed by entities the table does not know (in
// first-seen order) and then every other token in its original order.
func (o EntityOrder) OrderName(name string) string {
	tokens := strings.Split(name, Separator)

	values := make(map[string]string)
	var keys []string
	var suffixes []string

	for _, token := range tokens {
		e, ok := splitEntity(token)
		if !ok {
			suffixes = append(suffixes, token)
			continue
		}
		if _, seen := values[e.key]; !seen {
			keys = append(keys, e.key)
		}
		values[e.key] = e.value
	}

	ordered := make([]string, 0, len(tokens))
	for _, key := range o {
		if value, ok := values[key]; ok {
			ordered = append(ordered, key+"-"+value)
			delete(values, key)
		}
	}
	for _, key := range keys {
		if value, ok := values[key]; ok {
			ordered = append(ordered, key+"-"+value)
		}
	}
	ordered = append(ordered, suffixes...)

	return strings.Join(ordered, Separator)
}
