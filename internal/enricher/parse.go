package enricher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

const defaultHint = "AI/Auto"

var (
	codeFence     = regexp.MustCompile("```(?:json|JSON)?")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	replyNulls    = map[string]bool{
		"null": true, "n/d": true, "n/a": true, "undefined": true, "nessuno": true, "unknown": true,
	}
)

// cleanJSON extracts the outermost object or array (opener..closer) from a
// model reply and removes markdown fences and trailing commas.
func cleanJSON(text string, opener, closer byte) (string, bool) {
	s := codeFence.ReplaceAllString(text, "")
	start := strings.IndexByte(s, opener)
	end := strings.LastIndexByte(s, closer)
	if start < 0 || end <= start {
		return "", false
	}
	return trailingComma.ReplaceAllString(s[start:end+1], "$1"), true
}

func decode(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// ParseReply decodes a reply into values and source hints. It accepts the
// {"values": {...}, "sources": {...}} envelope or a flat field map, in which
// case every hint is "AI/Auto". Errors wrap ErrMalformedResponse.
func ParseReply(text string) (values, hints map[string]string, err error) {
	raw, ok := cleanJSON(text, '{', '}')
	if !ok {
		return nil, nil, eris.Wrap(ErrMalformedResponse, "no JSON object in reply")
	}

	var obj map[string]any
	if err := decode(raw, &obj); err != nil {
		return nil, nil, eris.Wrapf(ErrMalformedResponse, "decode reply: %v", err)
	}

	valuesObj, hasValues := obj["values"].(map[string]any)
	sourcesObj, hasSources := obj["sources"].(map[string]any)
	if !hasValues && !hasSources {
		valuesObj = obj
	}

	values = make(map[string]string, len(valuesObj))
	for k, v := range valuesObj {
		s := stringify(v)
		if replyNulls[strings.ToLower(strings.TrimSpace(s))] {
			s = ""
		}
		values[k] = s
	}

	hints = make(map[string]string, len(values))
	if hasValues || hasSources {
		for k, v := range sourcesObj {
			hints[k] = stringify(v)
		}
	} else {
		for k := range values {
			hints[k] = defaultHint
		}
	}
	return values, hints, nil
}

// stringify renders a decoded JSON value the way a spreadsheet cell would
// hold it. Objects with a "value" key collapse to that value.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case map[string]any:
		if inner, ok := t["value"]; ok {
			return stringify(inner)
		}
		return compact(t)
	default:
		return compact(t)
	}
}

func compact(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimSpace(raw))
}
