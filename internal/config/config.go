// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the torusfall server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
	Match    MatchConfig    `mapstructure:"match"`
	Game     GameConfig     `mapstructure:"game"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	WebSocket   WebSocketConfig `mapstructure:"websocket"`
	MaxSessions int             `mapstructure:"max_sessions"`
}

// WebSocketConfig holds the websocket listener settings. SubFrameDelay and
// FrameDelay pace snapshot playback to clients: sub-tick frames stream fast,
// round and turn boundaries linger.
type WebSocketConfig struct {
	Address       string        `mapstructure:"address"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PongTimeout   time.Duration `mapstructure:"pong_timeout"`
	SubFrameDelay time.Duration `mapstructure:"sub_frame_delay"`
	FrameDelay    time.Duration `mapstructure:"frame_delay"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig controls player session leases.
type SessionConfig struct {
	LeasePeriod time.Duration `mapstructure:"lease_period"`
}

// MatchConfig controls match lifecycle timing. A zero turn deadline means
// turns resolve only when every living player has committed.
type MatchConfig struct {
	TurnDeadline time.Duration `mapstructure:"turn_deadline"`
}

// ReplayConfig controls replay recording.
type ReplayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// GameConfig holds every tuning constant of the simulation core. The engine
// never hardcodes these; tests use DefaultGame().
type GameConfig struct {
	MapWidth  float64 `mapstructure:"map_width"`
	MapHeight float64 `mapstructure:"map_height"`

	StartingEnergy float64 `mapstructure:"starting_energy"`
	TurnIncome     float64 `mapstructure:"turn_income"`

	HubCost       float64 `mapstructure:"hub_cost"`
	WeaponCost    float64 `mapstructure:"weapon_cost"`
	ExtractorCost float64 `mapstructure:"extractor_cost"`
	DefenseCost   float64 `mapstructure:"defense_cost"`

	HubFuel     int `mapstructure:"hub_fuel"`
	DefenseFuel int `mapstructure:"defense_fuel"`

	DefaultHP    int `mapstructure:"default_hp"`
	HubHP        int `mapstructure:"hub_hp"`
	ExtractorHP  int `mapstructure:"extractor_hp"`
	DefenseHP    int `mapstructure:"defense_hp"`
	UndeployedHP int `mapstructure:"undeployed_hp"`
	ImpactDamage int `mapstructure:"impact_damage"`

	SubTicks       int `mapstructure:"sub_ticks"`
	SnapshotStride int `mapstructure:"snapshot_stride"`
	MaxRounds      int `mapstructure:"max_rounds"`

	InterceptRange float64 `mapstructure:"intercept_range"`
	HitRadius      float64 `mapstructure:"hit_radius"`

	MaxPull       float64 `mapstructure:"max_pull"`
	MaxLaunch     float64 `mapstructure:"max_launch"`
	PowerExponent float64 `mapstructure:"power_exponent"`

	LinkSampleStep float64 `mapstructure:"link_sample_step"`

	HubVision       float64 `mapstructure:"hub_vision"`
	ExtractorVision float64 `mapstructure:"extractor_vision"`
	DefenseVision   float64 `mapstructure:"defense_vision"`

	ResourceNodes int `mapstructure:"resource_nodes"`
}

// DefaultGame returns the stock game tuning. Tests build engines from this.
func DefaultGame() GameConfig {
	return GameConfig{
		MapWidth:        1000,
		MapHeight:       1000,
		StartingEnergy:  5,
		TurnIncome:      1,
		HubCost:         3,
		WeaponCost:      1,
		ExtractorCost:   2,
		DefenseCost:     2,
		HubFuel:         3,
		DefenseFuel:     1,
		DefaultHP:       3,
		HubHP:           3,
		ExtractorHP:     3,
		DefenseHP:       3,
		UndeployedHP:    1,
		ImpactDamage:    3,
		SubTicks:        120,
		SnapshotStride:  4,
		MaxRounds:       20,
		InterceptRange:  150,
		HitRadius:       30,
		MaxPull:         150,
		MaxLaunch:       600,
		PowerExponent:   1.8,
		LinkSampleStep:  20,
		HubVision:       250,
		ExtractorVision: 150,
		DefenseVision:   200,
		ResourceNodes:   8,
	}
}

// Load reads configuration from the given path, applying defaults and
// TORUSFALL_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TORUSFALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.pong_timeout", 60*time.Second)
	v.SetDefault("server.websocket.sub_frame_delay", 30*time.Millisecond)
	v.SetDefault("server.websocket.frame_delay", 400*time.Millisecond)
	v.SetDefault("server.max_sessions", 1024)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "torusfall")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "torusfall")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("session.lease_period", 5*time.Minute)

	v.SetDefault("match.turn_deadline", 90*time.Second)

	v.SetDefault("replay.enabled", true)
	v.SetDefault("replay.dir", "replays")

	def := DefaultGame()
	v.SetDefault("game.map_width", def.MapWidth)
	v.SetDefault("game.map_height", def.MapHeight)
	v.SetDefault("game.starting_energy", def.StartingEnergy)
	v.SetDefault("game.turn_income", def.TurnIncome)
	v.SetDefault("game.hub_cost", def.HubCost)
	v.SetDefault("game.weapon_cost", def.WeaponCost)
	v.SetDefault("game.extractor_cost", def.ExtractorCost)
	v.SetDefault("game.defense_cost", def.DefenseCost)
	v.SetDefault("game.hub_fuel", def.HubFuel)
	v.SetDefault("game.defense_fuel", def.DefenseFuel)
	v.SetDefault("game.default_hp", def.DefaultHP)
	v.SetDefault("game.hub_hp", def.HubHP)
	v.SetDefault("game.extractor_hp", def.ExtractorHP)
	v.SetDefault("game.defense_hp", def.DefenseHP)
	v.SetDefault("game.undeployed_hp", def.UndeployedHP)
	v.SetDefault("game.impact_damage", def.ImpactDamage)
	v.SetDefault("game.sub_ticks", def.SubTicks)
	v.SetDefault("game.snapshot_stride", def.SnapshotStride)
	v.SetDefault("game.max_rounds", def.MaxRounds)
	v.SetDefault("game.intercept_range", def.InterceptRange)
	v.SetDefault("game.hit_radius", def.HitRadius)
	v.SetDefault("game.max_pull", def.MaxPull)
	v.SetDefault("game.max_launch", def.MaxLaunch)
	v.SetDefault("game.power_exponent", def.PowerExponent)
	v.SetDefault("game.link_sample_step", def.LinkSampleStep)
	v.SetDefault("game.hub_vision", def.HubVision)
	v.SetDefault("game.extractor_vision", def.ExtractorVision)
	v.SetDefault("game.defense_vision", def.DefenseVision)
	v.SetDefault("game.resource_nodes", def.ResourceNodes)
}

func (c *Config) validate() error {
	if c.Game.MapWidth <= 0 || c.Game.MapHeight <= 0 {
		return fmt.Errorf("map dimensions must be positive, got %gx%g", c.Game.MapWidth, c.Game.MapHeight)
	}
	if c.Game.PowerExponent <= 1 {
		return fmt.Errorf("power exponent must be greater than 1, got %g", c.Game.PowerExponent)
	}
	if c.Game.SubTicks <= 0 {
		return fmt.Errorf("sub_ticks must be positive, got %d", c.Game.SubTicks)
	}
	if c.Game.MaxRounds <= 0 {
		return fmt.Errorf("max_rounds must be positive, got %d", c.Game.MaxRounds)
	}
	return nil
}
