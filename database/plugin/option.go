// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to plugin option environment variables, for
// example GAVEL_METADATA_MYSQL_HOST
const EnvPrefix = "GAVEL"

// flagName returns the command line flag name for a plugin option, such as
// metadata-mysql-host
func flagName(p PluginEntry, opt PluginOption) string {
	return fmt.Sprintf("%s-%s-%s", PluginTypeName(p.Type), p.Name, opt.Name)
}

// envName returns the environment variable name for a plugin option
func envName(p PluginEntry, opt PluginOption) string {
	return strings.ToUpper(
		strings.ReplaceAll(
			fmt.Sprintf(
				"%s_%s_%s_%s",
				EnvPrefix,
				PluginTypeName(p.Type),
				p.Name,
				opt.Name,
			),
			"-",
			"_",
		),
	)
}

// PopulateCmdlineOptions adds a flag to fs for every registered plugin option
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginMutex.RLock()
	defer pluginMutex.RUnlock()
	for _, p := range pluginEntries {
		for _, opt := range p.Options {
			name := flagName(p, opt)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(string)
				fs.StringVar(dest, name, def, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(bool)
				fs.BoolVar(dest, name, def, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(int)
				fs.IntVar(dest, name, def, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(uint64)
				fs.Uint64Var(dest, name, def, opt.Description)
			default:
				return fmt.Errorf(
					"unknown plugin option type %d for option %s",
					opt.Type,
					name,
				)
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options found in the environment
func ProcessEnvVars() error {
	pluginMutex.RLock()
	defer pluginMutex.RUnlock()
	for _, p := range pluginEntries {
		for _, opt := range p.Options {
			name := envName(p, opt)
			raw, ok := os.LookupEnv(name)
			if !ok {
				continue
			}
			value, err := parseOptionValue(opt, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := opt.set(value); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func parseOptionValue(opt PluginOption, raw string) (any, error) {
	switch opt.Type {
	case PluginOptionTypeString:
		return raw, nil
	case PluginOptionTypeBool:
		return strconv.ParseBool(raw)
	case PluginOptionTypeInt:
		return strconv.Atoi(raw)
	case PluginOptionTypeUint:
		return strconv.ParseUint(raw, 10, 64)
	default:
		return nil, fmt.Errorf("unknown plugin option type %d", opt.Type)
	}
}

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for typeName, plugins := range pluginConfig {
		var pluginType PluginType
		switch typeName {
		case PluginTypeName(PluginTypeBlob):
			pluginType = PluginTypeBlob
		case PluginTypeName(PluginTypeMetadata):
			pluginType = PluginTypeMetadata
		default:
			return fmt.Errorf("unknown plugin type: %s", typeName)
		}
		for pluginName, options := range plugins {
			for optionName, value := range options {
				// YAML decodes strings for options such as ports when
				// they are quoted
				if s, ok := value.(string); ok {
					if opt, found := lookupOption(pluginType, pluginName, optionName); found {
						parsed, err := parseOptionValue(opt, s)
						if err != nil {
							return fmt.Errorf(
								"%s plugin %s option %s: %w",
								typeName,
								pluginName,
								optionName,
								err,
							)
						}
						value = parsed
					}
				}
				if err := SetPluginOption(pluginType, pluginName, optionName, value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func lookupOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
) (PluginOption, bool) {
	pluginMutex.RLock()
	defer pluginMutex.RUnlock()
	for _, p := range pluginEntries {
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for _, opt := range p.Options {
			if opt.Name == optionName {
				return opt, true
			}
		}
	}
	return PluginOption{}, false
}
