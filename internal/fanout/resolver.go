package fanout

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/protocol-chat/notify-backend/internal/models"
)

// The conversation store accreted several membership encodings over time:
// an ordered list of ids, a map of id -> bool, a map of arbitrary key ->
// member object, and a bare string. Each shape is handled by its own pure
// parser so a new legacy shape can be added without touching the pipeline.

// NormalizeParticipants extracts the canonical member set from a raw
// conversation document. It unions the primary participants field with the
// secondary members field and the creator. unexpected is true when the
// primary field held a value no parser recognized.
func NormalizeParticipants(conv *models.Conversation) (ids []string, unexpected bool) {
	seen := make(map[string]struct{})
	add := func(list []string) {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	primary, ok := participantsFromValue(conv.Participants)
	if !ok && conv.Participants != nil {
		unexpected = true
	}
	add(primary)

	if secondary, ok := participantsFromValue(conv.Members); ok {
		add(secondary)
	}
	add([]string{strings.TrimSpace(conv.CreatedBy)})

	return ids, unexpected
}

// participantsFromValue classifies the raw membership value and dispatches
// to the matching shape parser. ok is false when no parser recognizes it.
func participantsFromValue(v interface{}) ([]string, bool) {
	if v == nil {
		return nil, true
	}
	if s, ok := v.(string); ok {
		return parseSingleID(s), true
	}
	if list, ok := asList(v); ok {
		return parseIDList(list), true
	}
	if m, ok := asMap(v); ok {
		return parseIDMap(m), true
	}
	return nil, false
}

// parseIDList flattens an ordered sequence of identifiers, dropping falsy
// entries and non-string values.
func parseIDList(list []interface{}) []string {
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// parseIDMap handles both legacy map encodings: id -> marker value, and
// arbitrary key -> member object carrying an id field. Membership is by key
// presence; the marker value is never consulted, so a key stored with false
// or nil is still a member.
func parseIDMap(m map[string]interface{}) []string {
	var out []string
	for key, val := range m {
		if nested, ok := asMap(val); ok {
			if id := nestedID(nested); id != "" {
				out = append(out, id)
				continue
			}
		}
		if strings.TrimSpace(key) != "" {
			out = append(out, strings.TrimSpace(key))
		}
	}
	return out
}

// parseSingleID treats a plain string as a single-element member set.
func parseSingleID(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{s}
}

// nestedID extracts the identifier a member object carries under any of the
// field names seen in legacy data.
func nestedID(m map[string]interface{}) string {
	for _, field := range []string{"id", "uid", "userId", "user_id"} {
		if s, ok := m[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// asList and asMap fold the BSON decoder's container types together with
// plain Go containers so the parsers above stay oblivious to the source.

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case primitive.A:
		return []interface{}(t), true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case primitive.M:
		return map[string]interface{}(t), true
	case primitive.D:
		return t.Map(), true
	case map[string]bool:
		out := make(map[string]interface{}, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out, true
	default:
		return nil, false
	}
}
