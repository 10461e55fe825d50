// Package runtimecatalog is the static mapping from runtime tag to the
// image, file layout, and default command needed to execute a raw_code or
// git_repo submission.
package runtimecatalog

import "strings"

// Entry describes one runtime profile.
type Entry struct {
	Image            string
	FileName         string
	DefaultBuildCmd  string
	InstallTemplate  string // "%s" is replaced with the space-joined dependency list
}

const defaultTag = "nodejs"

var catalog = map[string]Entry{
	"nodejs": {
		Image:           "node:20-slim",
		FileName:        "main.js",
		DefaultBuildCmd: "node main.js",
		InstallTemplate: "npm install %s",
	},
	"python": {
		Image:           "python:3.12-slim",
		FileName:        "main.py",
		DefaultBuildCmd: "python3 main.py",
		InstallTemplate: "pip install --no-cache-dir %s",
	},
	"go": {
		Image:           "golang:1.23-alpine",
		FileName:        "main.go",
		DefaultBuildCmd: "go run main.go",
		InstallTemplate: "go get %s",
	},
	"ruby": {
		Image:           "ruby:3.3-slim",
		FileName:        "main.rb",
		DefaultBuildCmd: "ruby main.rb",
		InstallTemplate: "gem install %s",
	},
	"bash": {
		Image:           "bash:5",
		FileName:        "main.sh",
		DefaultBuildCmd: "bash main.sh",
		InstallTemplate: "apk add --no-cache %s",
	},
}

// Lookup resolves a runtime tag to its catalog entry, case-insensitively.
// Unknown tags resolve to the default entry.
func Lookup(tag string) Entry {
	if e, ok := catalog[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return e
	}
	return catalog[defaultTag]
}

// Tags returns the known runtime tags, for CLI help text and validation.
func Tags() []string {
	tags := make([]string, 0, len(catalog))
	for t := range catalog {
		tags = append(tags, t)
	}
	return tags
}
