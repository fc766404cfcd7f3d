// Package config handles loading and validating rpihome agent configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading the IOTHUB_DEVICE_* variables of the IoT Hub device samples
//   - Overriding with RPIHOME_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Device keys and connection strings should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ModelID)
package config
