// Package config loads the enctiler configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full enctiler configuration, covering both the serving
// engine and the offline conversion pipeline.
type Config struct {
	Server struct {
		Addr          string `toml:"addr"`
		ChartDir      string `toml:"chartDir"`
		LegacyArchive string `toml:"legacyArchive"`
	} `toml:"server"`
	Convert struct {
		InputDir   string `toml:"inputDir"`
		OutputDir  string `toml:"outputDir"`
		WorkDir    string `toml:"workDir"`
		MinZoom    int    `toml:"minZoom"`
		MaxZoom    int    `toml:"maxZoom"`
		Workers    int    `toml:"workers"`
		OGRInfo    string `toml:"ogrinfo"`
		OGR2OGR    string `toml:"ogr2ogr"`
		Tippecanoe string `toml:"tippecanoe"`
	} `toml:"convert"`
	Log struct {
		Dir      string `toml:"dir"`
		Terminal bool   `toml:"terminal"`
	} `toml:"log"`
}

// Load reads the TOML configuration at path, with environment variables
// overriding file values. A missing file is not an error when path is
// empty; every field has a default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.chartDir", "tiles")
	v.SetDefault("server.legacyArchive", "tiles.mbtiles")
	v.SetDefault("convert.inputDir", "charts")
	v.SetDefault("convert.outputDir", "tiles")
	v.SetDefault("convert.workDir", "")
	v.SetDefault("convert.minZoom", 0)
	v.SetDefault("convert.maxZoom", 14)
	v.SetDefault("convert.workers", 1)
	v.SetDefault("convert.ogrinfo", "ogrinfo")
	v.SetDefault("convert.ogr2ogr", "ogr2ogr")
	v.SetDefault("convert.tippecanoe", "tippecanoe")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.terminal", true)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &conf, nil
}
