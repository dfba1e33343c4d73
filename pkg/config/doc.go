// Package config loads and validates the engine configuration.
//
// Configuration is written in CUE: the loader unifies the user's file with
// a built-in schema, so type errors and unknown fields are caught before
// the configuration is decoded. The decoded struct is then validated once
// more with struct tags for the constraints CUE does not express.
package config
