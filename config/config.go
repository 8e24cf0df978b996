package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Bankroll    BankrollConfig    `yaml:"bankroll"`
	LLM         LLMConfig         `yaml:"llm"`
	Debate      DebateConfig      `yaml:"debate"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Risk        RiskConfig        `yaml:"risk"`
	Sizing      SizingConfig      `yaml:"sizing"`
	Selection   SelectionConfig   `yaml:"selection"`
	Loop        LoopConfig        `yaml:"loop"`
	API         APIConfig         `yaml:"api"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// BankrollConfig fija el capital inicial en modo paper o cuando la base de
// datos todavía no tiene un bankroll persistido.
type BankrollConfig struct {
	Initial float64 `yaml:"initial"`
}

// LLMConfig configura el backend de debate. La API key nunca va en el YAML:
// se lee de OPENAI_API_KEY (o de .env).
type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	APIKey         string  `yaml:"-"`
}

// DebateConfig controla el número de rondas antes del veredicto.
type DebateConfig struct {
	Rounds int `yaml:"rounds"`
}

// CalibrationConfig controla cuándo el modelo isotónico entra en juego.
type CalibrationConfig struct {
	MinSamples int `yaml:"min_samples"`
}

// RiskConfig son los umbrales de aceptación de una decisión.
type RiskConfig struct {
	MinEdge          float64 `yaml:"min_edge"`
	MinConfidence    float64 `yaml:"min_confidence"`
	MinLiquidity     float64 `yaml:"min_liquidity"`
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxDailyLossPct  float64 `yaml:"max_daily_loss_pct"`
}

// SizingConfig controla el tamaño de las apuestas.
type SizingConfig struct {
	KellyFraction  float64 `yaml:"kelly_fraction"`
	MinBet         float64 `yaml:"min_bet"`
	MaxBet         float64 `yaml:"max_bet"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
}

// SelectionConfig filtra qué mercados merecen un debate.
type SelectionConfig struct {
	MinLiquidity         float64 `yaml:"min_liquidity"`
	MinVolume            float64 `yaml:"min_volume"`
	MinHoursToResolution float64 `yaml:"min_hours_to_resolution"`
	MaxHoursToResolution float64 `yaml:"max_hours_to_resolution"`
	MinPrice             float64 `yaml:"min_price"`
	MaxPrice             float64 `yaml:"max_price"`
}

// LoopConfig controla el ciclo continuo.
type LoopConfig struct {
	IntervalSeconds        int `yaml:"interval_seconds"`
	MaxMarketsPerCycle     int `yaml:"max_markets_per_cycle"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// LoopInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Loop.IntervalSeconds) * time.Second
}

// LLMTimeout devuelve el timeout por llamada al LLM como time.Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Validate comprueba las restricciones que setDefaults no puede arreglar.
func (c *Config) Validate(live bool) error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config.Validate: OPENAI_API_KEY no está definida")
	}
	if c.Sizing.MinBet > c.Sizing.MaxBet {
		return fmt.Errorf("config.Validate: sizing.min_bet (%.2f) > sizing.max_bet (%.2f)",
			c.Sizing.MinBet, c.Sizing.MaxBet)
	}
	if c.Selection.MinPrice >= c.Selection.MaxPrice {
		return fmt.Errorf("config.Validate: selection.min_price (%.2f) >= selection.max_price (%.2f)",
			c.Selection.MinPrice, c.Selection.MaxPrice)
	}
	if live && c.Storage.DSN == ":memory:" {
		return fmt.Errorf("config.Validate: modo live requiere storage persistente, no :memory:")
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("ORACLE_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Bankroll.Initial <= 0 {
		cfg.Bankroll.Initial = 50
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature <= 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.Debate.Rounds <= 0 {
		cfg.Debate.Rounds = 2
	}
	if cfg.Calibration.MinSamples <= 0 {
		cfg.Calibration.MinSamples = 50
	}
	if cfg.Risk.MinEdge <= 0 {
		cfg.Risk.MinEdge = 0.08
	}
	if cfg.Risk.MinConfidence <= 0 {
		cfg.Risk.MinConfidence = 0.65
	}
	if cfg.Risk.MinLiquidity <= 0 {
		cfg.Risk.MinLiquidity = 1000
	}
	if cfg.Risk.MaxOpenPositions <= 0 {
		cfg.Risk.MaxOpenPositions = 8
	}
	if cfg.Risk.MaxDailyLossPct <= 0 {
		cfg.Risk.MaxDailyLossPct = 0.10
	}
	if cfg.Sizing.KellyFraction <= 0 {
		cfg.Sizing.KellyFraction = 0.5
	}
	if cfg.Sizing.MinBet <= 0 {
		cfg.Sizing.MinBet = 1.0
	}
	if cfg.Sizing.MaxBet <= 0 {
		cfg.Sizing.MaxBet = 10.0
	}
	if cfg.Sizing.MaxPositionPct <= 0 {
		cfg.Sizing.MaxPositionPct = 0.10
	}
	if cfg.Selection.MinLiquidity <= 0 {
		cfg.Selection.MinLiquidity = 1000
	}
	if cfg.Selection.MinVolume <= 0 {
		cfg.Selection.MinVolume = 5000
	}
	if cfg.Selection.MinHoursToResolution <= 0 {
		cfg.Selection.MinHoursToResolution = 12
	}
	if cfg.Selection.MaxHoursToResolution <= 0 {
		cfg.Selection.MaxHoursToResolution = 24 * 90
	}
	if cfg.Selection.MinPrice <= 0 {
		cfg.Selection.MinPrice = 0.05
	}
	if cfg.Selection.MaxPrice <= 0 {
		cfg.Selection.MaxPrice = 0.95
	}
	if cfg.Loop.IntervalSeconds <= 0 {
		cfg.Loop.IntervalSeconds = 900
	}
	if cfg.Loop.MaxMarketsPerCycle <= 0 {
		cfg.Loop.MaxMarketsPerCycle = 5
	}
	if cfg.Loop.MaxConsecutiveFailures <= 0 {
		cfg.Loop.MaxConsecutiveFailures = 5
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "oracle.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
