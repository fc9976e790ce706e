package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/combatcore/game/world"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Database DatabaseConfig     `mapstructure:"database"`
	Bus      BusConfig          `mapstructure:"bus"`
	Game     GameConfig         `mapstructure:"game"`
	Arena    world.ArenaConfig  `mapstructure:"arena"`
	Combat   world.CombatConfig `mapstructure:"combat"`
	Security SecurityConfig     `mapstructure:"security"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// Disabled skips the HTTP inspection server (headless runs).
	Disabled bool `mapstructure:"disabled"`
	// AdminKey guards the control endpoints; empty disables them.
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // none | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type BusConfig struct {
	// RedisAddr selects the Redis publisher; empty means in-process only.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	LocalBuf      int    `mapstructure:"local_buf"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type GameConfig struct {
	TickMs int `mapstructure:"tick_ms"`
	// Duration stops the simulation after this much wall time; 0 runs until
	// interrupted.
	Duration time.Duration `mapstructure:"duration"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// TickInterval is the wall-clock period of one simulation tick.
func (g GameConfig) TickInterval() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

// Validate fails fast on malformed ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Game.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("config: game.tick_ms must be positive, got %d", c.Game.TickMs))
	}
	switch c.Database.Mode {
	case "", "none", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("config: unknown database.mode %q", c.Database.Mode))
	}
	errs = append(errs, c.Arena.Validate(), c.Combat.Validate())
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "none")
	v.SetDefault("database.sqlite_path", "combat.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("bus.local_buf", 256)
	v.SetDefault("bus.channel_prefix", "combat.")
	v.SetDefault("game.tick_ms", 50)
	v.SetDefault("game.duration", "0s")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	v.SetDefault("arena.min.x", 0.0)
	v.SetDefault("arena.min.z", 0.0)
	v.SetDefault("arena.max.x", 30.0)
	v.SetDefault("arena.max.z", 30.0)
	v.SetDefault("arena.cell_size", 0.5)
	v.SetDefault("arena.clearance", 0.25)
	v.SetDefault("arena.seed", 1)
	v.SetDefault("arena.trail_lifetime", "300ms")
	v.SetDefault("arena.player.name", "player")
	v.SetDefault("arena.player.position.x", 15.0)
	v.SetDefault("arena.player.position.z", 15.0)
	v.SetDefault("arena.enemies", []map[string]any{
		{"name": "brute", "position": map[string]any{"x": 15.0, "z": 22.0}, "yaw": 3.14159},
		{"name": "archer", "position": map[string]any{"x": 22.0, "z": 15.0}, "yaw": -1.5708, "ranged": true},
	})
	v.SetDefault("arena.pickups", []map[string]any{
		{"name": "medkit", "position": map[string]any{"x": 12.0, "z": 15.0}, "heal": 25.0},
	})

	v.SetDefault("combat.sight.detection_range", 10.0)
	v.SetDefault("combat.sight.field_of_view", 110.0)
	v.SetDefault("combat.agent.wander_radius", 10.0)
	v.SetDefault("combat.agent.wander_timer", "5s")
	v.SetDefault("combat.agent.idle_time", "2s")
	v.SetDefault("combat.agent.chase_speed", 3.5)
	v.SetDefault("combat.agent.wander_speed_factor", 0.5)
	v.SetDefault("combat.agent.lose_target_time", "5s")
	v.SetDefault("combat.agent.attack_range", 2.0)
	v.SetDefault("combat.agent.attack_cooldown", "2s")
	v.SetDefault("combat.agent.attack_damage", 10.0)
	v.SetDefault("combat.agent.attack_hysteresis", 1.5)
	v.SetDefault("combat.agent.turn_rate", 5.0)
	v.SetDefault("combat.agent.wander_sample_attempts", 8)
	v.SetDefault("combat.weapon.cooldown", "1s")
	v.SetDefault("combat.weapon.spread_angle", 0.0)
	v.SetDefault("combat.weapon.force", 15.0)
	v.SetDefault("combat.weapon.force_mode", "impulse")
	v.SetDefault("combat.weapon.lifetime", "5s")
	v.SetDefault("combat.weapon.target_height_offset", 1.0)
	v.SetDefault("combat.projectile.damage", 20.0)
	v.SetDefault("combat.projectile.impact_effect", true)
	v.SetDefault("combat.projectile.effect_lifetime", "2s")
	v.SetDefault("combat.projectile.grace_delay", "200ms")
	v.SetDefault("combat.projectile.trail_slack", "500ms")
	v.SetDefault("combat.projectile.radius", 0.1)
	v.SetDefault("combat.projectile.mass", 1.0)
	for _, who := range []string{"player_health", "enemy_health"} {
		v.SetDefault("combat."+who+".max_hit_points", 100.0)
		v.SetDefault("combat."+who+".removal_delay", "500ms")
		v.SetDefault("combat."+who+".restart_delay", "3s")
	}
	v.SetDefault("combat.player_health.primary", true)
	v.SetDefault("combat.body_radius", 0.5)
	v.SetDefault("combat.body_height", 2.0)
	v.SetDefault("combat.stopping_distance", 0.1)
	v.SetDefault("combat.interact_range", 3.0)
}

// Load reads config from the given YAML file path and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// Default returns the configuration with no file at all.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
