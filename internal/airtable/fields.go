package airtable

import (
	"encoding/json"
	"strconv"
)

// Accessors below read loosely typed record fields. Missing or mistyped
// values yield the zero value.

func (r Record) String(key string) string {
	switch v := r.Fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// FirstString returns the first non-empty value among keys.
func (r Record) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

func (r Record) Float(key string) float64 {
	switch v := r.Fields[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func (r Record) Bool(key string) bool {
	switch v := r.Fields[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return false
}

func (r Record) Strings(key string) []string {
	out := []string{}
	items, ok := r.Fields[key].([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Attachment is an entry of an attachment field. Plain URL strings are
// accepted too and leave Filename empty.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// Attachments reads the first present attachment field among keys.
func (r Record) Attachments(keys ...string) []Attachment {
	for _, key := range keys {
		items, ok := r.Fields[key].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		out := make([]Attachment, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				out = append(out, Attachment{URL: v})
			case map[string]any:
				raw, err := json.Marshal(v)
				if err != nil {
					continue
				}
				var a Attachment
				if err := json.Unmarshal(raw, &a); err == nil && a.URL != "" {
					out = append(out, a)
				}
			}
		}
		return out
	}
	return []Attachment{}
}
