/*
	(c) Copyright YouWol

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/loader"
	"github.com/youwol/datamanager/kernel/logging"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/services"
)

// executor replaces the process runner of every command when set.
var executor runner.Executor

var RootCmd = &cobra.Command{
	Use:           "datamanager",
	Short:         "Backup, restore and Keycloak migration jobs for the youwol platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return RootCmd.Execute()
}

// CommonOptions are the flags shared by every command touching the job configuration.
type CommonOptions struct {
	ConfigPath string
	Verbose    bool
}

func (o *CommonOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "path to an optional YAML configuration file")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "v", false, "enable debug logging")
}

// Job is an opened configuration: the logging sink and the services built on it.
type Job struct {
	Config   *model.Config
	Sink     *logging.Sink
	Services *services.Services
}

func (o *CommonOptions) open() (*Job, error) {
	cfg, err := loader.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	opts := logging.Options{Verbose: o.Verbose}
	if cfg.LogDir != "" || cfg.WorkDir != "" {
		opts.Dir = filepath.Dir(cfg.LogPath(logging.OutLogName))
	}
	sink, err := logging.Init(opts)
	if err != nil {
		return nil, err
	}
	svc := services.New(cfg, sink.Stdout, sink.Stderr)
	svc.Exec = executor
	return &Job{Config: cfg, Sink: sink, Services: svc}, nil
}

func (j *Job) Close() {
	if err := j.Services.Close(); err != nil {
		logrus.WithError(err).Warn("unable to release services")
	}
	_ = j.Sink.Close()
}
