// Package config loads the SECC's static runtime configuration: timing
// budgets, TLS/PKI requirements, and the auth options a deployment
// offers. It is deliberately thin — a YAML file read once at startup —
// mirroring how the rest of this codebase loads structured fixtures.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
)

// LoadError wraps a configuration load failure with the file that caused
// it, so a caller logging the error doesn't need to thread the path
// through separately.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Config is the SECC's static runtime configuration.
type Config struct {
	// SetupTimeout, SequenceTimeout and CurrentDemandTimeout are the
	// configured wait for the first message (SessionSetupReq), for each
	// later request, and for the next request in the DC CurrentDemand
	// loop. They are loaded and validated here only: secc.Handler does not
	// read Config and arms state.SetupTimeout, state.SequenceTimeout and
	// state.CurrentDemandTimeout instead.
	SetupTimeout         time.Duration `yaml:"setup_timeout"`
	SequenceTimeout      time.Duration `yaml:"sequence_timeout"`
	CurrentDemandTimeout time.Duration `yaml:"current_demand_timeout"`

	// RequireTLS must be true whenever AllowPnC is; Validate rejects a
	// configuration that allows PnC without it. It is not consulted per
	// connection: the ISO 15118-2 state machine offers PnC only when the
	// session's own IsTLS flag is set.
	RequireTLS bool `yaml:"require_tls"`
	// AllowPnC controls whether PnC is ever offered as an auth option,
	// independent of the TLS requirement above.
	AllowPnC bool `yaml:"allow_pnc"`

	// V2GRootCertPath and MORootCertPath point to PEM bundles of trusted
	// roots for CertificateInstallation and PaymentDetails respectively.
	V2GRootCertPath string `yaml:"v2g_root_cert_path"`
	MORootCertPath  string `yaml:"mo_root_cert_path"`
	// CPSCertChainPath and CPSSigningKeyPath locate the Certificate
	// Provisioning Service's own chain and key, used to counter-sign
	// CertificateInstallationRes.
	CPSCertChainPath  string `yaml:"cps_cert_chain_path"`
	CPSSigningKeyPath string `yaml:"cps_signing_key_path"`

	// EVSEID is the identifier this SECC reports in SessionSetupRes.
	EVSEID string `yaml:"evse_id"`
}

// Default returns the configuration the example binaries run with when
// no file is supplied: PnC disabled, TLS not required, timeouts matching
// the state machine's built-in constants.
func Default() Config {
	return Config{
		SetupTimeout:         20 * time.Second,
		SequenceTimeout:      60 * time.Second,
		CurrentDemandTimeout: 250 * time.Millisecond,
		RequireTLS:           false,
		AllowPnC:             false,
		EVSEID:               "EVSE-0000001",
	}
}

// Load reads and parses a YAML configuration file, filling in any field
// left zero with Default's value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{File: path, Message: "read config file", Cause: err}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &LoadError{File: path, Message: "parse YAML", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, &LoadError{File: path, Message: "validate", Cause: err}
	}
	return cfg, nil
}

// Validate reports whether the configuration is internally consistent:
// PnC requires TLS, and every timeout must be positive.
func (c Config) Validate() error {
	if c.AllowPnC && !c.RequireTLS {
		return fmt.Errorf("config: allow_pnc requires require_tls")
	}
	if c.SetupTimeout <= 0 || c.SequenceTimeout <= 0 || c.CurrentDemandTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	return nil
}

// AuthOptions returns the authorization options this configuration
// offers during ServiceDiscovery, in priority order.
func (c Config) AuthOptions() []dtype.AuthOption {
	opts := []dtype.AuthOption{dtype.AuthEIM}
	if c.AllowPnC {
		opts = append(opts, dtype.AuthPnC)
	}
	return opts
}
