// Package configs embeds the example files written by `amanbeta init`.
//
// Configuration layering is described in internal/config (Load).
package configs

import _ "embed"

// ConfigTemplate is written to amanbeta.yaml by `amanbeta init`.
//
//go:embed amanbeta.example.yaml
var ConfigTemplate string

// MappingTemplate is written to mapping.yaml by `amanbeta init`. It maps the
// emails.db and github.db databases that `amanbeta init --sample` creates.
//
//go:embed mapping.example.yaml
var MappingTemplate string
