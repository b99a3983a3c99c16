package prompt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/values"
)

// ContentType reports the media type Encode produces for format.
func ContentType(format OutputFormat) string {
	switch format {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Encode serialises bag. The form encoding posts every field under its bare
// id the way the hidden mirror does, so it decodes with
// surface.DecodeSubmission.
func Encode(bag values.Bag, format OutputFormat) ([]byte, error) {
	switch format {
	case OutputFormatFormURLEncoded:
		form := url.Values{}
		for key, value := range bag {
			form.Set(key, render.MirrorValue(value))
		}
		return []byte(form.Encode()), nil
	case OutputFormatPrettyText:
		var b strings.Builder
		writePretty(&b, "", map[string]any(bag))
		return []byte(b.String()), nil
	case OutputFormatJSON, "":
		return json.Marshal(bag)
	default:
		return nil, fmt.Errorf("prompt: unknown output format %q", format)
	}
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%s\n", prefix, text(v))
		}
	}
}
