package contract

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	paramsRegExp = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)
	bracesRegExp = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
)

// PathParams returns the placeholder names of a path template in order.
func PathParams(template string) []string {
	var names []string
	for _, m := range paramsRegExp.FindAllStringSubmatch(template, -1) {
		names = append(names, m[1])
	}
	return names
}

// ReplacePathParams substitutes ":name" placeholders with values from params.
// Placeholders without a value are left intact.
func ReplacePathParams(template string, params map[string]any) string {
	if len(params) == 0 {
		return template
	}
	return paramsRegExp.ReplaceAllStringFunc(template, func(match string) string {
		v, ok := params[match[1:]]
		if !ok {
			return match
		}
		return url.PathEscape(fmt.Sprint(v))
	})
}

// MatchPath reports whether a concrete url path matches a path template.
func MatchPath(template, path string) bool {
	quoted := regexp.QuoteMeta(template)
	// QuoteMeta leaves ':' and identifier characters alone.
	pattern := "^" + paramsRegExp.ReplaceAllString(quoted, "([^/]*)") + "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// ExtractPathParams matches a concrete url path against a path template and
// returns the unescaped placeholder values.
func ExtractPathParams(template, path string) (map[string]string, bool) {
	names := PathParams(template)
	pattern := "^" + paramsRegExp.ReplaceAllString(regexp.QuoteMeta(template), "([^/]*)") + "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(names))
	for i, name := range names {
		v, err := url.PathUnescape(m[i+1])
		if err != nil {
			v = m[i+1]
		}
		params[name] = v
	}
	return params, true
}

// EncodeQuery url-encodes queries with keys in sorted order.
// Slice values produce one pair per element; nil values are skipped.
func EncodeQuery(queries map[string]any) string {
	if len(queries) == 0 {
		return ""
	}
	keys := make([]string, 0, len(queries))
	for k := range queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := queries[k].(type) {
		case nil:
		case []string:
			for _, s := range v {
				values.Add(k, s)
			}
		case []any:
			for _, s := range v {
				values.Add(k, fmt.Sprint(s))
			}
		default:
			values.Add(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// BracePath converts "/users/:id" to "/users/{id}", the form used by
// net/http patterns, chi and OpenAPI.
func BracePath(template string) string {
	return paramsRegExp.ReplaceAllString(template, "{$1}")
}

// ColonPath converts "/users/{id}" to "/users/:id".
func ColonPath(path string) string {
	return bracesRegExp.ReplaceAllString(path, ":$1")
}

// JoinURL joins a base url and a path without doubling the slash between them.
func JoinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
