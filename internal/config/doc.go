// Package config loads, validates, and hot-reloads the overseer
// configuration file.
//
// JSON and YAML are both accepted; YAML is coerced to JSON so a single
// strict decoder (DisallowUnknownFields) covers both formats. A missing
// config file can be created from the built-in default so the operator
// has something concrete to edit.
package config
