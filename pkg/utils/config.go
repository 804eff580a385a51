// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"strings"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. S3ABUFFER_SERVICE_PORT.
const EnvPrefix = "S3ABUFFER"

var (
	ConfigurationFileDirectory string
)

// LoadConfiguration merges the named config file into viper. A missing file
// is only an error when required is set.
func LoadConfiguration(configFileName string, required bool) error {
	viper.SetConfigName(configFileName)
	if ConfigurationFileDirectory != "" {
		viper.AddConfigPath(ResolvePath(ConfigurationFileDirectory))
	}
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.s3abuffer")
	viper.AddConfigPath("/etc/s3abuffer/")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if required {
				return err
			}
			logger.Debug().Str("name", configFileName).Msg("config file not found")
			return nil
		}
		return err
	}
	logger.Info().Str("file", viper.ConfigFileUsed()).Msg("loaded config file")

	return nil
}
