//nolint:lll
package config

// Config represents the complete configuration for the cutout application.
// It includes settings for all commands (segment, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Segmentation engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// EngineConfig contains the segmentation parameters.
type EngineConfig struct {
	Components   int     `mapstructure:"components" yaml:"components" json:"components"`
	Gamma        float64 `mapstructure:"gamma" yaml:"gamma" json:"gamma"`
	LambdaScale  float64 `mapstructure:"lambda_scale" yaml:"lambda_scale" json:"lambda_scale"`
	MinSamples   float64 `mapstructure:"min_samples" yaml:"min_samples" json:"min_samples"`
	Iterations   int     `mapstructure:"iterations" yaml:"iterations" json:"iterations"`
	Workers      int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	MaxImageSize int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	Solver       string  `mapstructure:"solver" yaml:"solver" json:"solver"`

	// Mixture initialisation
	KMeans KMeansConfig `mapstructure:"kmeans" yaml:"kmeans" json:"kmeans"`
}

// KMeansConfig contains the k-means seeding settings.
type KMeansConfig struct {
	Seed          uint64 `mapstructure:"seed" yaml:"seed" json:"seed"`
	Attempts      int    `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	MaxIterations int    `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string  `mapstructure:"format" yaml:"format" json:"format"`
	File         string  `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string  `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string  `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	OverlayAlpha float64 `mapstructure:"overlay_alpha" yaml:"overlay_alpha" json:"overlay_alpha"`
	HintColor    string  `mapstructure:"hint_color" yaml:"hint_color" json:"hint_color"`
	Feather      float64 `mapstructure:"feather" yaml:"feather" json:"feather"`
	Crop         bool    `mapstructure:"crop" yaml:"crop" json:"crop"`
	Simplify     float64 `mapstructure:"simplify" yaml:"simplify" json:"simplify"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `mapstructure:"host" yaml:"host" json:"host"`
	Port            int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxIterations   int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	RateLimit       float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst       int     `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string  `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Margin          float64 `mapstructure:"margin" yaml:"margin" json:"margin"`
	Recursive       bool    `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	UseMasks        bool    `mapstructure:"use_masks" yaml:"use_masks" json:"use_masks"`
	ContinueOnError bool    `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
