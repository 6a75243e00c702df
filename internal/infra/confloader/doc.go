// Package confloader loads layered configuration with koanf.
//
// Sources, from lowest to highest priority:
//
//  1. Default values (the target struct as passed in)
//  2. Configuration file (YAML)
//  3. Environment variables (FILEKV_SECTION_KEY)
//  4. Explicit overrides, usually command-line flags (LoadMap)
package confloader
