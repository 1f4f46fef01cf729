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

package log

import (
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

func init() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// Options controls where and how much the sampler logs.
type Options struct {
	Debug bool
	// Quiet keeps warnings and errors only.
	Quiet      bool
	Path       string
	MaxSize    int
	MaxAge     int
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.Bool("debug", false, "use debug log mode")
	flagSet.BoolP("quiet", "q", false, "only log warnings and errors")
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// OptionsFromFlags reads the flags registered by AddFlags.
func OptionsFromFlags(flagSet *pflag.FlagSet) Options {
	var opts Options
	opts.Debug, _ = flagSet.GetBool("debug")
	opts.Quiet, _ = flagSet.GetBool("quiet")
	opts.Path, _ = flagSet.GetString("log-path")
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

func SetLogger(opts Options) {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	timeEncoder := zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	if opts.Debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zap.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
		level = zap.InfoLevel
	}
	if opts.Quiet {
		level = zap.WarnLevel
	}
	// stdout carries results of the commands, logs go to stderr
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if opts.Path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
		}))
	}
	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(writers...), level)
	logger = zap.New(core)
}
