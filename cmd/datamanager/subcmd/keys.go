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
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/engine"
	"github.com/youwol/datamanager/kernel/keycloak"
)

func init() {
	RootCmd.AddCommand(NewKeysCommand())
}

func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and rotate the signing keys of the youwol realm",
	}
	cmd.AddCommand(NewKeysListCommand())
	cmd.AddCommand(NewKeysRotateCommand())
	return cmd
}

func NewKeysListCommand() *cobra.Command {
	listCmd := &KeysListCommand{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the key providers of the youwol realm",
		Args:  cobra.NoArgs,
		RunE:  listCmd.run,
	}

	listCmd.addFlags(cmd)

	return cmd
}

type KeysListCommand struct {
	CommonOptions
}

func (k *KeysListCommand) run(cmd *cobra.Command, args []string) error {
	job, err := k.open()
	if err != nil {
		return err
	}
	defer job.Close()

	providers, err := keycloak.NewKeyRotation(job.Services.Admin()).ListProviders(cmd.Context())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Provider", "Algorithm", "Priority", "Active", "Enabled", "Id"})
	for _, p := range providers {
		t.AppendRow(table.Row{p.Name, p.ProviderId, p.Algorithm, strconv.Itoa(p.Priority), p.Active, p.Enabled, p.Id})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "total", len(providers)})
	t.Render()
	return nil
}

func NewKeysRotateCommand() *cobra.Command {
	rotateCmd := &WorkflowCommand{Workflow: engine.WorkflowRotateKeys}
	var mode string
	rotateCmd.prepare = func(job *Job) {
		job.Config.Keycloak.RotateKeys = mode
	}

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate or reset the signing keys of a running server",
		Args:  cobra.NoArgs,
		RunE:  rotateCmd.run,
	}

	rotateCmd.addFlags(cmd)
	cmd.Flags().StringVar(&mode, "mode", "", "rotation mode: rotate keeps the old keys passive, reset deletes them")
	cmd.Flags().DurationVar(&rotateCmd.Grace, "grace", DefaultGrace, "time allowed to wind down after a termination signal")

	return cmd
}
