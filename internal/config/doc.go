// SPDX-License-Identifier: MIT

// Package config loads the generator and ingestion-service configuration with
// precedence ENV > YAML file > defaults.
package config
