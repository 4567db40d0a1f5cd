package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ImagesConfig struct {
		SourceDir string `yaml:"source_dir" validate:"omitempty,dir"`
		Copy      bool   `yaml:"copy"`
		MaxWidth  int    `yaml:"max_width" validate:"gte=0"`
	}

	ProjectConfig struct {
		Generate      bool   `yaml:"generate"`
		FileName      string `yaml:"file_name" validate:"required_if=Generate true"`
		Namespace     string `yaml:"namespace" validate:"required_if=Generate true"`
		VirtualFolder string `yaml:"virtual_folder" validate:"required_if=Generate true"`
		Title         string `yaml:"title"`
	}

	DocumentConfig struct {
		Extensions            []string      `yaml:"extensions" validate:"min=1,dive,required,startswith=."`
		ImageDir              string        `yaml:"image_dir" validate:"required"`
		Placeholder           string        `yaml:"placeholder" validate:"required"`
		DeprecationNotice     string        `yaml:"deprecation_notice"`
		FileNameTransliterate bool          `yaml:"file_name_transliterate"`
		TemplatePath          string        `yaml:"template_path" sanitize:"assure_file_access"`
		StylesheetPath        string        `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		Images                ImagesConfig  `yaml:"images"`
		Project               ProjectConfig `yaml:"project"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
