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
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/cassandra"
	"github.com/youwol/datamanager/kernel/keycloak"
	"github.com/youwol/datamanager/kernel/loader"
	"github.com/youwol/datamanager/kernel/logging"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/objectstore"
	"github.com/youwol/datamanager/kernel/store"
)

// LogNames are the log files a job may leave in its log directory.
var LogNames = []string{
	keycloak.BuildLog,
	keycloak.ExportLog,
	keycloak.ImportLog,
	keycloak.AdminLog,
	objectstore.LogName,
	cassandra.LogName,
	logging.OutLogName,
	logging.ErrLogName,
}

func init() {
	RootCmd.AddCommand(NewStatusCommand())
}

func NewStatusCommand() *cobra.Command {
	statusCmd := &StatusCommand{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the Keycloak phase history and the job log files",
		Args:  cobra.NoArgs,
		RunE:  statusCmd.run,
	}

	cmd.Flags().StringVarP(&statusCmd.ConfigPath, "config", "c", "", "path to an optional YAML configuration file")

	return cmd
}

type StatusCommand struct {
	ConfigPath string
}

func (s *StatusCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loader.LoadConfig(s.ConfigPath)
	if err != nil {
		return err
	}
	if err := model.Require(model.EnvKeycloakStatusFile, cfg.Keycloak.StatusFile); err != nil {
		return err
	}
	status := store.NewStatusFile(cfg.Keycloak.StatusFile, nil)

	phases := table.NewWriter()
	phases.SetOutputMirror(cmd.OutOrStdout())
	phases.SetStyle(table.StyleLight)
	phases.SetTitle("status: %s", currentPhase(status))
	phases.AppendHeader(table.Row{"#", "Phase", "At"})
	transitions, err := status.Transitions()
	if err != nil {
		logrus.WithError(err).Warn("unable to read the phase journal")
	}
	for i, t := range transitions {
		phases.AppendRow(table.Row{i + 1, t.Phase, t.At.Format(time.RFC3339)})
	}
	phases.Render()

	logs := table.NewWriter()
	logs.SetOutputMirror(cmd.OutOrStdout())
	logs.SetStyle(table.StyleLight)
	logs.AppendHeader(table.Row{"Log", "Size", "Modified"})
	for _, name := range LogNames {
		info, err := os.Stat(cfg.LogPath(name))
		if err != nil {
			continue
		}
		logs.AppendRow(table.Row{name, info.Size(), info.ModTime().UTC().Format(time.RFC3339)})
	}
	logs.Render()
	return nil
}

func currentPhase(status store.PhaseStore) string {
	phase, err := status.Phase()
	if err != nil {
		return "unknown"
	}
	return phase.String()
}
