// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of smurff.
type Config struct {
	Sampler SamplerConfig `mapstructure:"sampler"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SamplerConfig holds the hyper-parameters of a sampling session.
type SamplerConfig struct {
	NumLatent   int           `mapstructure:"num_latent" validate:"gt=0"`
	Burnin      int           `mapstructure:"burnin" validate:"gte=0"`
	NSamples    int           `mapstructure:"nsamples" validate:"gte=0"`
	RandomSeed  *int64        `mapstructure:"random_seed"`
	Noise       string        `mapstructure:"noise" validate:"oneof=fixed adaptive"`
	Precision   float64       `mapstructure:"precision" validate:"gt=0"`
	SnInit      float64       `mapstructure:"sn_init" validate:"gt=0"`
	SnMax       float64       `mapstructure:"sn_max" validate:"gtefield=SnInit"`
	Center      string        `mapstructure:"center" validate:"oneof=global none"`
	InitModel   string        `mapstructure:"init_model" validate:"oneof=random zero"`
	LambdaBeta  float64       `mapstructure:"lambda_beta" validate:"gt=0"`
	Tol         float64       `mapstructure:"tol" validate:"gt=0,lt=1"`
	Threshold   *float64      `mapstructure:"threshold"`
	SaveFreq    int           `mapstructure:"save_freq" validate:"gte=-1"`
	SavePrefix  string        `mapstructure:"save_prefix" validate:"required"`
	KeepPredAll bool          `mapstructure:"keep_pred_all"`
	Verbose     int           `mapstructure:"verbose" validate:"gte=0,lte=2"`
	Jobs        int           `mapstructure:"jobs" validate:"gte=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	PriorRow    string        `mapstructure:"prior_row" validate:"oneof=normal normalone macau spikeandslab"`
	PriorCol    string        `mapstructure:"prior_col" validate:"oneof=normal normalone macau spikeandslab"`
}

// StorageConfig locates saved samples. URI is a local directory or one of
// s3://bucket/prefix, gs://bucket/prefix and azblob://container/prefix.
type StorageConfig struct {
	URI   string          `mapstructure:"uri"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Sampler: SamplerConfig{
			NumLatent:  model.DefaultNumLatent,
			Burnin:     model.DefaultBurnin,
			NSamples:   model.DefaultNSamples,
			Noise:      model.NoiseFixed,
			Precision:  model.DefaultPrecision,
			SnInit:     model.DefaultSnInit,
			SnMax:      model.DefaultSnMax,
			Center:     model.CenterGlobal,
			InitModel:  model.InitRandom,
			LambdaBeta: model.DefaultLambdaBeta,
			Tol:        model.DefaultTol,
			SavePrefix: model.DefaultSavePrefix,
			Verbose:    model.DefaultVerbose,
			PriorRow:   "normal",
			PriorCol:   "normal",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [sampler]
	v.SetDefault("sampler.num_latent", defaultConfig.Sampler.NumLatent)
	v.SetDefault("sampler.burnin", defaultConfig.Sampler.Burnin)
	v.SetDefault("sampler.nsamples", defaultConfig.Sampler.NSamples)
	v.SetDefault("sampler.noise", defaultConfig.Sampler.Noise)
	v.SetDefault("sampler.precision", defaultConfig.Sampler.Precision)
	v.SetDefault("sampler.sn_init", defaultConfig.Sampler.SnInit)
	v.SetDefault("sampler.sn_max", defaultConfig.Sampler.SnMax)
	v.SetDefault("sampler.center", defaultConfig.Sampler.Center)
	v.SetDefault("sampler.init_model", defaultConfig.Sampler.InitModel)
	v.SetDefault("sampler.lambda_beta", defaultConfig.Sampler.LambdaBeta)
	v.SetDefault("sampler.tol", defaultConfig.Sampler.Tol)
	v.SetDefault("sampler.save_freq", defaultConfig.Sampler.SaveFreq)
	v.SetDefault("sampler.save_prefix", defaultConfig.Sampler.SavePrefix)
	v.SetDefault("sampler.keep_pred_all", defaultConfig.Sampler.KeepPredAll)
	v.SetDefault("sampler.verbose", defaultConfig.Sampler.Verbose)
	v.SetDefault("sampler.jobs", defaultConfig.Sampler.Jobs)
	v.SetDefault("sampler.timeout", defaultConfig.Sampler.Timeout)
	v.SetDefault("sampler.prior_row", defaultConfig.Sampler.PriorRow)
	v.SetDefault("sampler.prior_col", defaultConfig.Sampler.PriorCol)
}

type environmentBinding struct {
	key string
	env string
}

var bindings = []environmentBinding{
	{"sampler.num_latent", "SMURFF_NUM_LATENT"},
	{"sampler.burnin", "SMURFF_BURNIN"},
	{"sampler.nsamples", "SMURFF_NSAMPLES"},
	{"sampler.random_seed", "SMURFF_RANDOM_SEED"},
	{"sampler.jobs", "SMURFF_JOBS"},
	{"storage.uri", "SMURFF_STORAGE_URI"},
	{"storage.s3.endpoint", "S3_ENDPOINT"},
	{"storage.s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"storage.gcs.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS"},
	{"storage.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	{"metrics.addr", "SMURFF_METRICS_ADDR"},
}

// LoadConfig loads configuration from a TOML or YAML file and the environment. An empty path
// loads defaults and the environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	return unmarshal(v)
}

// ReadConfig parses configuration text of the given type ("toml" or "yaml") over defaults.
func ReadConfig(configType, text string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		return nil, errors.Trace(err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

// Params converts the sampler section to hyper-parameters.
func (c *SamplerConfig) Params() model.Params {
	params := model.Params{
		model.NumLatent:   c.NumLatent,
		model.Burnin:      c.Burnin,
		model.NSamples:    c.NSamples,
		model.Noise:       c.Noise,
		model.Precision:   c.Precision,
		model.SnInit:      c.SnInit,
		model.SnMax:       c.SnMax,
		model.Center:      c.Center,
		model.InitModel:   c.InitModel,
		model.LambdaBeta:  c.LambdaBeta,
		model.Tol:         c.Tol,
		model.SaveFreq:    c.SaveFreq,
		model.SavePrefix:  c.SavePrefix,
		model.KeepPredAll: c.KeepPredAll,
		model.Verbose:     c.Verbose,
	}
	if c.RandomSeed != nil {
		params[model.RandomSeed] = *c.RandomSeed
	}
	if c.Threshold != nil {
		params[model.Threshold] = *c.Threshold
	}
	return params
}
