package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	PhaseSetup   = "setup"
	PhaseCreate  = "create"
	PhaseUpgrade = "upgrade"
	PhaseCleanup = "cleanup"

	DefaultFactoryPrefix = "sputnikdao-factory2"
)

// AllPhases lists the lifecycle phases in execution order.
var AllPhases = []string{PhaseSetup, PhaseCreate, PhaseUpgrade, PhaseCleanup}

// publicRPC maps the networks with a public JSON-RPC endpoint to it.
var publicRPC = map[string]string{
	"mainnet": "https://rpc.mainnet.near.org",
	"testnet": "https://rpc.testnet.near.org",
}

var accountIDRe = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

type NearConfig struct {
	Bin         string
	Network     string
	NodeURL     string
	RPCURL      string
	CallTimeout time.Duration
	MaxRetries  uint
}

type AccountsConfig struct {
	Master  string
	Factory string
	DAOName string
}

// DAOAccount returns the account the factory creates for the DAO.
func (c AccountsConfig) DAOAccount() string {
	return c.DAOName + "." + c.Factory
}

type ArtifactsConfig struct {
	RepoPath    string
	FactoryWasm string
	OldDAOWasm  string
	NewDAOWasm  string
}

// Resolve returns path joined to the repository path unless it is absolute.
func (c ArtifactsConfig) Resolve(path string) string {
	if filepath.IsAbs(path) || c.RepoPath == "" {
		return path
	}
	return filepath.Join(c.RepoPath, path)
}

type BuildConfig struct {
	Command string
	Dir     string
	Skip    bool
}

type DeployConfig struct {
	InitialBalance string
	CreateGas      uint64
	CreateDeposit  string
	UpgradeGas     uint64
	StoreGas       uint64
	StoreDeposit   string
	DAOPurpose     string
	DAOMetadata    string
	Policy         []string
}

// Check is a view call on the DAO whose printed result must equal Expected.
type Check struct {
	Method   string
	Expected string
}

type RunConfig struct {
	Near          NearConfig
	Accounts      AccountsConfig
	Artifacts     ArtifactsConfig
	Build         BuildConfig
	Deploy        DeployConfig
	Checks        []Check
	Phases        []string
	Keep          bool
	VerifyTimeout time.Duration
	PostgresConn  string
	MetricsFile   string
}

// LoadNearConfigFromCLI reads the near client settings. Without an explicit
// rpc-url the public endpoint of the network is used.
func LoadNearConfigFromCLI() NearConfig {
	cfg := NearConfig{
		Bin:         viper.GetString("near-bin"),
		Network:     viper.GetString("network"),
		NodeURL:     viper.GetString("node-url"),
		RPCURL:      viper.GetString("rpc-url"),
		CallTimeout: viper.GetDuration("call-timeout"),
		MaxRetries:  viper.GetUint("max-retries"),
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = publicRPC[cfg.Network]
	}
	return cfg
}

// LoadAccountsConfigFromCLI reads account names and fills in derived defaults.
func LoadAccountsConfigFromCLI() AccountsConfig {
	cfg := AccountsConfig{
		Master:  viper.GetString("master-account"),
		Factory: viper.GetString("factory-account"),
		DAOName: viper.GetString("dao-name"),
	}
	if cfg.Factory == "" && cfg.Master != "" {
		cfg.Factory = DefaultFactoryPrefix + "." + cfg.Master
	}
	if cfg.DAOName == "" {
		cfg.DAOName = "dao-" + uuid.NewString()[:8]
	}
	return cfg
}

// LoadRunConfigFromCLI builds the full lifecycle configuration.
func LoadRunConfigFromCLI() (RunConfig, error) {
	checks, err := ParseChecks(getList("checks"))
	if err != nil {
		return RunConfig{}, err
	}

	accounts := LoadAccountsConfigFromCLI()
	policy := getList("dao-policy")
	if len(policy) == 0 && accounts.Master != "" {
		policy = []string{accounts.Master}
	}

	phases := getList("phases")
	if len(phases) == 0 {
		phases = AllPhases
	}

	return RunConfig{
		Near:     LoadNearConfigFromCLI(),
		Accounts: accounts,
		Artifacts: ArtifactsConfig{
			RepoPath:    viper.GetString("repo-path"),
			FactoryWasm: viper.GetString("factory-wasm"),
			OldDAOWasm:  viper.GetString("old-dao-wasm"),
			NewDAOWasm:  viper.GetString("new-dao-wasm"),
		},
		Build: BuildConfig{
			Command: viper.GetString("build-command"),
			Dir:     viper.GetString("build-dir"),
			Skip:    viper.GetBool("skip-build"),
		},
		Deploy: DeployConfig{
			InitialBalance: viper.GetString("initial-balance"),
			CreateGas:      viper.GetUint64("create-gas"),
			CreateDeposit:  viper.GetString("create-deposit"),
			UpgradeGas:     viper.GetUint64("upgrade-gas"),
			StoreGas:       viper.GetUint64("store-gas"),
			StoreDeposit:   viper.GetString("store-deposit"),
			DAOPurpose:     viper.GetString("dao-purpose"),
			DAOMetadata:    viper.GetString("dao-metadata"),
			Policy:         policy,
		},
		Checks:        checks,
		Phases:        phases,
		Keep:          viper.GetBool("keep"),
		VerifyTimeout: viper.GetDuration("verify-timeout"),
		PostgresConn:  viper.GetString("postgres-conn"),
		MetricsFile:   viper.GetString("metrics-file"),
	}, nil
}

// getList reads a list key. Values coming from the environment arrive as a
// single comma separated string.
func getList(key string) []string {
	var out []string
	for _, v := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseChecks parses `method=expected` pairs.
func ParseChecks(raw []string) ([]Check, error) {
	checks := make([]Check, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		method, expected, ok := strings.Cut(r, "=")
		method = strings.TrimSpace(method)
		if !ok || method == "" {
			return nil, fmt.Errorf("invalid check %q, expected method=value", r)
		}
		checks = append(checks, Check{Method: method, Expected: strings.TrimSpace(expected)})
	}
	return checks, nil
}

// ValidateAccountID reports whether id is a valid NEAR account id.
func ValidateAccountID(id string) error {
	if len(id) < 2 || len(id) > 64 {
		return fmt.Errorf("account id %q must be between 2 and 64 characters", id)
	}
	if !accountIDRe.MatchString(id) {
		return fmt.Errorf("account id %q is invalid", id)
	}
	return nil
}

func (c NearConfig) Validate() error {
	if c.Bin == "" {
		return fmt.Errorf("near binary must be set")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative")
	}
	if c.RPCURL == "" {
		return nil
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid rpc url %q", c.RPCURL)
	}
	for network := range publicRPC {
		if network != c.Network && strings.Contains(u.Hostname(), network) {
			return fmt.Errorf("rpc url %s belongs to %s but network is %s", c.RPCURL, network, c.Network)
		}
	}
	return nil
}

func (c AccountsConfig) Validate() error {
	if c.Master == "" {
		return fmt.Errorf("master account must be set")
	}
	for _, id := range []string{c.Master, c.Factory} {
		if err := ValidateAccountID(id); err != nil {
			return err
		}
	}
	if strings.Contains(c.DAOName, ".") {
		return fmt.Errorf("dao name %q must not contain dots", c.DAOName)
	}
	if err := ValidateAccountID(c.DAOAccount()); err != nil {
		return fmt.Errorf("invalid dao name %q: %w", c.DAOName, err)
	}
	return nil
}

func (c RunConfig) Validate() error {
	if err := c.Near.Validate(); err != nil {
		return err
	}
	if err := c.Accounts.Validate(); err != nil {
		return err
	}
	for _, p := range c.Phases {
		if !slices.Contains(AllPhases, p) {
			return fmt.Errorf("unknown phase %q, expected one of %s", p, strings.Join(AllPhases, ","))
		}
	}
	if c.HasPhase(PhaseSetup) && c.Artifacts.FactoryWasm == "" {
		return fmt.Errorf("factory wasm must be set")
	}
	if c.HasPhase(PhaseCreate) && c.Artifacts.OldDAOWasm == "" {
		return fmt.Errorf("old dao wasm must be set")
	}
	if c.HasPhase(PhaseUpgrade) && c.Artifacts.NewDAOWasm == "" {
		return fmt.Errorf("new dao wasm must be set")
	}
	if c.Deploy.CreateGas == 0 || c.Deploy.UpgradeGas == 0 {
		return fmt.Errorf("create and upgrade gas must be greater than zero")
	}
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be greater than zero")
	}
	return nil
}

// HasPhase reports whether the run includes phase.
func (c RunConfig) HasPhase(phase string) bool {
	return slices.Contains(c.Phases, phase)
}
