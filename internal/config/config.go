package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Address        string
	AllowedOrigins []string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIImageModel string
	OpenAIImageSize  string

	// ImageProvider is "openai" or "grid".
	ImageProvider   string
	GridAPIURL      string
	GridAPIKey      string
	GridClientAgent string
	GridModel       string
	UploadDir       string

	// StorageBackend is "irys" or "s3".
	StorageBackend    string
	IrysUploaderURL   string
	IrysAPIKey        string
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3GatewayURL      string

	MinterPrivateKey     string
	SolanaRPCURL         string
	SolanaCluster        string
	SolanaConfirmTimeout time.Duration
	SolanaPollInterval   time.Duration

	NFTSymbol     string
	NFTRoyaltyBPS int

	TreasuryProgramID string
	TreasurySeed      string
	DepositLamports   uint64

	PipelineTimeout      time.Duration
	ShutdownGrace        time.Duration
	ImagineRatePerMinute int
	ImagineRateBurst     int
	SafetyCacheTTL       time.Duration

	DatabaseURL string
	MintsFile   string

	// OperatorAPIKey unlocks the /api/mints endpoints. Empty disables them.
	OperatorAPIKey string

	invalid []string
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		Address:        getEnv("IMAGINE_SERVER_ADDR", ":"+getEnv("PORT", "8800")),
		AllowedOrigins: splitAndClean(os.Getenv("IMAGINE_ALLOWED_ORIGINS")),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		OpenAIChatModel:  getEnv("OPENAI_CHAT_MODEL", "gpt-4o"),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIImageSize:  getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),

		ImageProvider:   strings.ToLower(getEnv("IMAGE_PROVIDER", "openai")),
		GridAPIURL:      getEnv("AIPG_API_URL", "https://api.aipowergrid.io/api/v2"),
		GridAPIKey:      os.Getenv("AIPG_API_KEY"),
		GridClientAgent: getEnv("AIPG_CLIENT_AGENT", "imagine-mint:v1"),
		GridModel:       getEnv("AIPG_MODEL", "flux.1-krea-dev"),
		UploadDir:       getEnv("UPLOAD_DIR", "./image"),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", "irys")),
		IrysUploaderURL:   os.Getenv("IRYS_UPLOADER_URL"),
		IrysAPIKey:        os.Getenv("IRYS_API_KEY"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3GatewayURL:      getEnv("S3_GATEWAY_URL", "https://ipfs.filebase.io/ipfs"),

		MinterPrivateKey: strings.TrimSpace(os.Getenv("MINTER_PRIVATE_KEY")),
		SolanaRPCURL:     getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		SolanaCluster:    getEnv("SOLANA_CLUSTER", "devnet"),

		NFTSymbol: getEnv("NFT_SYMBOL", "AIART"),

		TreasuryProgramID: getEnv("TREASURY_PROGRAM_ID", "5y6nvZ2mHWG38oGN6jqUpg2mLFdsiWUBvJNDiQnHUBbS"),
		TreasurySeed:      getEnv("TREASURY_SEED", "coloroffire"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		MintsFile:   os.Getenv("MINTS_FILE"),

		OperatorAPIKey: strings.TrimSpace(os.Getenv("OPERATOR_API_KEY")),
	}

	c.SolanaConfirmTimeout = c.duration("SOLANA_CONFIRM_TIMEOUT", 90*time.Second)
	c.SolanaPollInterval = c.duration("SOLANA_POLL_INTERVAL", time.Second)
	c.PipelineTimeout = c.duration("PIPELINE_TIMEOUT", 5*time.Minute)
	c.ShutdownGrace = c.duration("SHUTDOWN_GRACE", c.PipelineTimeout+15*time.Second)
	c.SafetyCacheTTL = c.duration("SAFETY_CACHE_TTL", 10*time.Minute)
	c.NFTRoyaltyBPS = c.integer("NFT_ROYALTY_BPS", 500)
	c.ImagineRatePerMinute = c.integer("IMAGINE_RATE_PER_MINUTE", 6)
	c.ImagineRateBurst = c.integer("IMAGINE_RATE_BURST", 2)
	c.DepositLamports = uint64(c.integer("DEPOSIT_LAMPORTS", 50_000_000))

	return c
}

// Validate reports missing required settings and unparsable values.
func (c Config) Validate() error {
	var errs []error
	for _, key := range c.invalid {
		errs = append(errs, fmt.Errorf("%s is not a valid value", key))
	}
	if c.MinterPrivateKey == "" {
		errs = append(errs, errors.New("MINTER_PRIVATE_KEY is required"))
	}

	switch c.ImageProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	case "grid":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the language model"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_PROVIDER %q must be openai or grid", c.ImageProvider))
	}

	switch c.StorageBackend {
	case "irys":
		if c.IrysUploaderURL == "" {
			errs = append(errs, errors.New("IRYS_UPLOADER_URL is required for the irys backend"))
		}
	case "s3":
		if c.S3Bucket == "" || c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			errs = append(errs, errors.New("S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q must be irys or s3", c.StorageBackend))
	}

	if c.NFTRoyaltyBPS < 0 || c.NFTRoyaltyBPS > 10000 {
		errs = append(errs, fmt.Errorf("NFT_ROYALTY_BPS %d out of range 0..10000", c.NFTRoyaltyBPS))
	}
	return errors.Join(errs...)
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		c.invalid = append(c.invalid, key)
		return fallback
	}
	return d
}

func (c *Config) integer(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.invalid = append(c.invalid, key)
		return fallback
	}
	return n
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitAndClean(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
