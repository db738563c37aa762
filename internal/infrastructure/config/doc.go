// Package config handles loading and validating the Vantage bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file and overriding with environment variables
//   - Validation of required fields and station polling bounds
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
