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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/loader"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/tasks"
)

func init() {
	RootCmd.AddCommand(NewValidateCommand())
}

func NewValidateCommand() *cobra.Command {
	validateCmd := &ValidateCommand{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the job configuration without running anything",
		Args:  cobra.NoArgs,
		RunE:  validateCmd.validate,
	}

	cmd.Flags().StringVarP(&validateCmd.ConfigPath, "config", "c", "", "path to an optional YAML configuration file")
	cmd.Flags().BoolVar(&validateCmd.Dump, "dump", false, "print the resolved configuration with secrets masked")

	return cmd
}

type ValidateCommand struct {
	ConfigPath string
	Dump       bool
}

func (v *ValidateCommand) validate(cmd *cobra.Command, args []string) error {
	cfg, err := loader.LoadConfig(v.ConfigPath)
	if err != nil {
		return err
	}

	subtasks, err := model.ParseSubtasks(cfg.Job.Subtasks)
	if err != nil {
		return err
	}
	if _, err := model.ParseRotationMode(cfg.Keycloak.RotateKeys); err != nil {
		return err
	}
	if _, err := tasks.ParseDirection(cfg.Keycloak.Direction); err != nil {
		return err
	}
	switch cfg.Archive.Backend {
	case model.ArchiveBackendS3, model.ArchiveBackendSftp, model.ArchiveBackendLocal:
	default:
		return model.NewConfigurationError(model.EnvArchiveBackend, "unknown backend '%s'", cfg.Archive.Backend)
	}

	logrus.Infof("configuration valid: subtasks %v, archive backend '%s'", subtasks.Items(), cfg.Archive.Backend)

	if v.Dump {
		data, err := loader.Dump(cfg)
		if err != nil {
			return err
		}
		_, _ = cmd.OutOrStdout().Write(data)
	}
	return nil
}
