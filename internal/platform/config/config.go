package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "STUDYSYNC"
	configFileName = "studysync.yaml"
)

type Config struct {
	DataDir string
	DBPath  string
	// AudioDir holds per-project audio files named <project id>.mp3.
	AudioDir string
	Log      LogConfig
	Sync     SyncConfig
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type SyncConfig struct {
	Transport  string
	RootFolder string
	Workers    int
	Folder     FolderConfig
	Minio      MinioConfig
	S3         S3Config
	Drive      DriveConfig
	Plugin     PluginConfig
}

type FolderConfig struct {
	Path string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
}

type DriveConfig struct {
	CredentialsFile string
}

// PluginConfig selects an installed transport plugin by manifest name.
type PluginConfig struct {
	Name         string
	StartTimeout time.Duration
	CallTimeout  time.Duration
}

// Load resolves configuration from defaults, an optional YAML file and
// STUDYSYNC_* environment variables, in increasing precedence. When
// configFile is empty, <dataDir>/studysync.yaml is read if present.
func Load(dataDir, configFile string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	v := viper.New()
	setDefaults(v, dataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigFile(filepath.Join(dataDir, configFileName))
		if err := v.ReadInConfig(); err != nil && !isMissingFile(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DataDir:  v.GetString("data_dir"),
		DBPath:   v.GetString("db_path"),
		AudioDir: v.GetString("audio_dir"),
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
		Sync: SyncConfig{
			Transport:  v.GetString("sync.transport"),
			RootFolder: v.GetString("sync.root_folder"),
			Workers:    v.GetInt("sync.workers"),
			Folder:     FolderConfig{Path: v.GetString("sync.folder.path")},
			Minio: MinioConfig{
				Endpoint:  v.GetString("sync.minio.endpoint"),
				AccessKey: v.GetString("sync.minio.access_key"),
				SecretKey: v.GetString("sync.minio.secret_key"),
				Bucket:    v.GetString("sync.minio.bucket"),
				UseSSL:    v.GetBool("sync.minio.use_ssl"),
				Prefix:    v.GetString("sync.minio.prefix"),
			},
			S3: S3Config{
				Bucket:   v.GetString("sync.s3.bucket"),
				Region:   v.GetString("sync.s3.region"),
				Prefix:   v.GetString("sync.s3.prefix"),
				Endpoint: v.GetString("sync.s3.endpoint"),
			},
			Drive:  DriveConfig{CredentialsFile: v.GetString("sync.drive.credentials_file")},
			Plugin: PluginConfig{
				Name:         v.GetString("sync.plugin.name"),
				StartTimeout: v.GetDuration("sync.plugin.start_timeout"),
				CallTimeout:  v.GetDuration("sync.plugin.call_timeout"),
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("db_path", filepath.Join(dataDir, "studysync.db"))
	v.SetDefault("audio_dir", filepath.Join(dataDir, "audio"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("sync.transport", "folder")
	v.SetDefault("sync.root_folder", "StudySync")
	v.SetDefault("sync.workers", 1)
	v.SetDefault("sync.folder.path", filepath.Join(dataDir, "remote"))
	v.SetDefault("sync.minio.use_ssl", true)
	v.SetDefault("sync.s3.region", "us-east-1")
	v.SetDefault("sync.plugin.start_timeout", 3*time.Second)
	v.SetDefault("sync.plugin.call_timeout", 30*time.Second)
}

func (c Config) Validate() error {
	switch c.Sync.Transport {
	case "folder", "minio", "s3", "drive", "plugin":
	default:
		return fmt.Errorf("unknown sync transport: %s", c.Sync.Transport)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync workers must be at least 1")
	}
	if strings.TrimSpace(c.Sync.RootFolder) == "" {
		return fmt.Errorf("sync root folder is required")
	}
	if c.Sync.Transport == "plugin" && strings.TrimSpace(c.Sync.Plugin.Name) == "" {
		return fmt.Errorf("sync.plugin.name is required for the plugin transport")
	}
	return nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
