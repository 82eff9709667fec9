// Package config handles loading and validating the DoorBird bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (DOORBIRD_SECTION_KEY)
//   - Validation of required fields, including every door station entry
//   - Detection of the removed top-level "doorbird:" block
//
// Security Considerations:
//   - Device and broker passwords are redacted by String and MarshalJSON
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range cfg.Warnings {
//	    logger.Warn(w)
//	}
package config
