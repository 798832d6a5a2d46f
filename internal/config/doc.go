// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for relayplay.
//
// Precedence is ENV > File > Defaults. Files are YAML and parsed strictly:
// unknown keys are an error. Environment keys use the RELAYPLAY_ prefix.
package config
