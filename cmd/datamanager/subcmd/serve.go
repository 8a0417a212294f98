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
	"github.com/youwol/datamanager/kernel/mcp"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
)

func init() {
	RootCmd.AddCommand(NewServeCommand())
}

func NewServeCommand() *cobra.Command {
	serveCmd := &ServeCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an MCP server exposing the job status and logs",
		Long: `Start an MCP (Model Context Protocol) server on stdio, exposing the state of
the data manager job to AI assistants.

The server provides tools for:
  - get_status: current Keycloak phase and its history
  - list_workflows: names of the Keycloak workflows
  - tail_log: last lines of a job log file

And resources:
  - datamanager://status: current Keycloak phase and its history`,
		Args: cobra.NoArgs,
		RunE: serveCmd.run,
	}

	cmd.Flags().StringVarP(&serveCmd.ConfigPath, "config", "c", "", "path to an optional YAML configuration file")
	cmd.Flags().BoolVar(&serveCmd.UseMemoryStore, "memory", false, "use an in-memory status store (for testing)")

	return cmd
}

type ServeCommand struct {
	ConfigPath     string
	UseMemoryStore bool
}

func (s *ServeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loader.LoadConfig(s.ConfigPath)
	if err != nil {
		return err
	}

	var statusStore store.JournalStore
	if s.UseMemoryStore {
		logrus.Info("using in-memory status store")
		statusStore = store.NewMemoryStore()
	} else {
		if err := model.Require(model.EnvKeycloakStatusFile, cfg.Keycloak.StatusFile); err != nil {
			return err
		}
		statusStore = store.NewStatusFile(cfg.Keycloak.StatusFile, nil)
	}

	logrus.Info("starting MCP server on stdio...")
	server := mcp.NewDatamanagerMCPServer(statusStore, filepath.Dir(cfg.LogPath(logging.OutLogName)))
	return server.ServeStdio()
}
