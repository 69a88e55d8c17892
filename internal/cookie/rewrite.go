// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cookie rewrites outgoing Set-Cookie headers so authentication
// cookies issued by the backend stay usable when the console and the API are
// served from different origins.
package cookie

import (
	"net/http"
	"strings"
)

// Rewrite normalizes a single Set-Cookie header value for host:
//   - every Domain attribute is removed and domain=<host> is set
//   - HttpOnly is removed so the console can read the cookie from script
//   - SameSite=Lax becomes samesite=none, a missing SameSite becomes
//     samesite=none, None and Strict are left as issued
//   - secure is added when missing
//   - path=/ is added when no Path attribute exists
//
// The output is canonical, so Rewrite(Rewrite(v, h), h) == Rewrite(v, h).
func Rewrite(setCookie, host string) string {
	parts := strings.Split(setCookie, ";")
	pair := strings.TrimSpace(parts[0])
	if pair == "" {
		return setCookie
	}

	var (
		others   []string
		seen     = make(map[string]bool)
		path     string
		sameSite string
		secure   string
	)

	for _, raw := range parts[1:] {
		attr := strings.TrimSpace(raw)
		if attr == "" {
			continue
		}
		name, value, _ := strings.Cut(attr, "=")
		key := strings.ToLower(strings.TrimSpace(name))

		switch key {
		case "domain", "httponly":
			continue
		case "path":
			if path == "" {
				path = attr
			}
		case "samesite":
			if sameSite != "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(value), "lax") {
				sameSite = "samesite=none"
			} else {
				sameSite = attr
			}
		case "secure":
			if secure == "" {
				secure = attr
			}
		default:
			if seen[key] {
				continue
			}
			seen[key] = true
			others = append(others, attr)
		}
	}

	if path == "" {
		path = "path=/"
	}
	if sameSite == "" {
		sameSite = "samesite=none"
	}
	if secure == "" {
		secure = "secure"
	}

	out := make([]string, 0, len(others)+5)
	out = append(out, pair)
	out = append(out, others...)
	out = append(out, path)
	if host != "" {
		out = append(out, "domain="+host)
	}
	out = append(out, sameSite, secure)
	return strings.Join(out, "; ")
}

// RewriteHeader rewrites every Set-Cookie value in h independently.
// Other headers are left untouched.
func RewriteHeader(h http.Header, host string) {
	values := h.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}
	rewritten := make([]string, len(values))
	for i, v := range values {
		rewritten[i] = Rewrite(v, host)
	}
	h["Set-Cookie"] = rewritten
}
