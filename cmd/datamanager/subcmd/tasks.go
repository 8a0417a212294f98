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
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/engine"
	"github.com/youwol/datamanager/kernel/services"
)

func init() {
	RootCmd.AddCommand(NewBackupCommand())
	RootCmd.AddCommand(NewRestoreCommand())
	RootCmd.AddCommand(NewSetupCommand())
}

func NewBackupCommand() *cobra.Command {
	return newTaskCommand("backup", "Archive the selected S3 buckets, Cassandra data and Keycloak export",
		func(ctx context.Context, cmd *cobra.Command, svc *services.Services) error {
			backup, err := svc.Backup(ctx)
			if err != nil {
				return err
			}
			name, err := backup.Run(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		})
}

func NewRestoreCommand() *cobra.Command {
	return newTaskCommand("restore", "Restore Cassandra data and S3 buckets from an extracted archive",
		func(ctx context.Context, cmd *cobra.Command, svc *services.Services) error {
			restore, err := svc.Restore()
			if err != nil {
				return err
			}
			return restore.Run(ctx)
		})
}

func NewSetupCommand() *cobra.Command {
	return newTaskCommand("setup", "Fetch and extract an archive, then prepare the Keycloak container script",
		func(ctx context.Context, cmd *cobra.Command, svc *services.Services) error {
			setup, err := svc.Setup(ctx)
			if err != nil {
				return err
			}
			return setup.Run(ctx)
		})
}

// TaskCommand runs a backup, restore or setup task. A termination signal cancels the task.
type TaskCommand struct {
	CommonOptions
	task func(ctx context.Context, cmd *cobra.Command, svc *services.Services) error
}

func newTaskCommand(use, short string, task func(context.Context, *cobra.Command, *services.Services) error) *cobra.Command {
	taskCmd := &TaskCommand{task: task}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  taskCmd.run,
	}

	taskCmd.addFlags(cmd)

	return cmd
}

func (t *TaskCommand) run(cmd *cobra.Command, args []string) error {
	job, err := t.open()
	if err != nil {
		return err
	}
	defer job.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), engine.TerminationSignals...)
	defer stop()

	return t.task(ctx, cmd, job.Services)
}
