// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"path/filepath"
	"strings"
)

const apiSegment = "/api/"

// PathFromDir derives a route pattern from the directory a handler lives in.
//
// The root prefix and everything up to the last /api/ segment are removed,
// dynamic segments written as [name] become {name} and the result is
// prefixed with /api/. For example, with root /srv/app the directory
// /srv/app/src/api/users/[id] becomes /api/users/{id}.
func PathFromDir(root, dir string) string {
	dir = filepath.ToSlash(dir)
	root = filepath.ToSlash(root)

	if root != "" {
		dir = strings.TrimPrefix(dir, root)
	}
	if i := strings.LastIndex(dir, apiSegment); i >= 0 {
		dir = dir[i+len(apiSegment):]
	}
	dir = strings.Trim(dir, "/")

	r := strings.NewReplacer("[", "{", "]", "}")
	return apiSegment + r.Replace(dir)
}
