package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(cfgFile, config); err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetSite returns the study site configuration
func (y *YAMLProvider) GetSite() (*SiteData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Site, nil
}

// GetFilters returns the acquisition filter configuration
func (y *YAMLProvider) GetFilters() (*FilterData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Filters, nil
}

// GetFit returns the fit configuration
func (y *YAMLProvider) GetFit() (*FitData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Fit, nil
}

// GetPlots returns histogram plot definitions
func (y *YAMLProvider) GetPlots() ([]PlotData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.Plots, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// WriteYAML writes configData to filename.
func WriteYAML(filename string, configData *ConfigData) error {
	out, err := yaml.Marshal(configData)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, out, 0o644)
}
