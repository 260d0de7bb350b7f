// SPDX-License-Identifier: EPL-2.0

// Package config loads the service configuration.
//
// Values come from, in increasing precedence: Default, a YAML file, and
// AUDCONV_* environment variables (optionally read from a .env file).
package config
